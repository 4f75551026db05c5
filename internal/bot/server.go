// Package bot serves the Discord interactions webhook that answers /whois
// lookups against the stored guild dashboard.
package bot

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/internal/store"
	"github.com/groster/groster/pkg/discord"
)

const maxBodyBytes = 1 << 20

const lookupFailed = "An error occurred while retrieving character information."

// DashboardLoader reads a guild table. store.Store satisfies it.
type DashboardLoader interface {
	LoadTable(ctx context.Context, key model.GuildKey, table store.Table, out any) (time.Time, error)
}

// Options configures the interactions server.
type Options struct {
	// PublicKey is the hex-encoded Ed25519 application public key.
	PublicKey   string
	Guild       model.GuildKey
	CORSOrigins []string
	Location    *time.Location
}

// Server handles Discord interactions.
type Server struct {
	pub     ed25519.PublicKey
	tables  DashboardLoader
	guild   model.GuildKey
	origins []string
	loc     *time.Location
	now     func() time.Time
}

// NewServer creates an interactions server.
func NewServer(tables DashboardLoader, opts Options) (*Server, error) {
	pub, err := ParsePublicKey(opts.PublicKey)
	if err != nil {
		return nil, err
	}
	if !opts.Guild.Valid() {
		return nil, eris.New("bot: guild region, realm and name are required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		pub:     pub,
		tables:  tables,
		guild:   opts.Guild,
		origins: opts.CORSOrigins,
		loc:     loc,
		now:     time.Now,
	}, nil
}

// ParsePublicKey decodes a hex-encoded Ed25519 public key.
func ParsePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, eris.Wrap(err, "bot: decode public key")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, eris.Errorf("bot: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Router returns the HTTP handler of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "X-Signature-Ed25519", "X-Signature-Timestamp"},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Post("/interactions", s.handleInteraction)
	r.Post("/api/interactions", s.handleInteraction)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Signature-Ed25519")
	timestamp := r.Header.Get("X-Signature-Timestamp")
	if signature == "" || timestamp == "" {
		http.Error(w, "Missing headers", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	if !s.verify(signature, timestamp, body) {
		zap.L().Warn("bot: invalid request signature",
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, "Invalid request signature", http.StatusUnauthorized)
		return
	}

	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "Invalid interaction", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case discord.InteractionPing:
		zap.L().Info("bot: ping received")
		writeJSON(w, http.StatusOK, discord.InteractionResponse{Type: discord.ResponsePong})
	case discord.InteractionApplicationCommand:
		if resp, ok := s.command(r.Context(), &in); ok {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		http.Error(w, "Unhandled command", http.StatusBadRequest)
	default:
		http.Error(w, "Unhandled interaction type", http.StatusBadRequest)
	}
}

func (s *Server) verify(signature, timestamp string, body []byte) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(s.pub, msg, sig)
}

func (s *Server) command(ctx context.Context, in *discord.Interaction) (discord.InteractionResponse, bool) {
	if in.Data == nil {
		return discord.InteractionResponse{}, false
	}

	var userID string
	fields := []zap.Field{zap.String("command", in.Data.Name)}
	if u := in.Invoker(); u != nil {
		userID = u.ID
		fields = append(fields, zap.String("user_id", u.ID), zap.String("user", u.GlobalName))
	}
	zap.L().Info("bot: command received", fields...)

	switch in.Data.Name {
	case discord.PingCommand.Name:
		return discord.Message("pong"), true
	case discord.WhoisCommand.Name:
		return discord.Message(s.whois(ctx, in.Data.StringOption(""), userID)), true
	}
	return discord.InteractionResponse{}, false
}

func (s *Server) whois(ctx context.Context, name, userID string) string {
	if name == "" {
		return "Please provide a character name."
	}

	var rows []model.DashboardRow
	modified, err := s.tables.LoadTable(ctx, s.guild, store.TableDashboard, &rows)
	switch {
	case errors.Is(err, store.ErrNotFound):
		zap.L().Warn("bot: no dashboard stored", zap.Stringer("guild", s.guild))
		modified = time.Time{}
	case err != nil:
		zap.L().Error("bot: load dashboard", zap.Error(err))
		return lookupFailed
	}

	info, ok := Lookup(rows, name)
	if !ok {
		zap.L().Debug("bot: character not found", zap.String("name", name))
		return FormatNotFound(NotFound{
			Name:        name,
			UserID:      userID,
			ModifiedAt:  modified,
			Suggestions: Suggest(rows, name),
		}, s.now(), s.loc)
	}

	zap.L().Debug("bot: character found",
		zap.String("name", name),
		zap.String("main", info.Main.Name),
		zap.Int("alts", len(info.Alts)),
	)
	return FormatCharacter(info, s.guild.Region)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("bot: write response", zap.Error(err))
	}
}
