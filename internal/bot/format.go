package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/groster/groster/internal/model"
)

var classEmojis = map[string]string{
	"Death Knight": "💀",
	"Demon Hunter": "😈",
	"Druid":        "🌿",
	"Evoker":       "🐉",
	"Hunter":       "🏹",
	"Mage":         "🧙",
	"Monk":         "🥋",
	"Paladin":      "⚔️",
	"Priest":       "🩸",
	"Rogue":        "🗡️",
	"Shaman":       "⚡",
	"Warlock":      "🔥",
	"Warrior":      "🛡️",
}

const defaultEmoji = "⚔️"

// ClassEmoji returns the emoji shown next to a class name.
func ClassEmoji(class string) string {
	if e, ok := classEmojis[class]; ok {
		return e
	}
	return defaultEmoji
}

// StaleAfter is the dashboard age after which a miss is reported as
// possibly caused by an outdated roster.
const StaleAfter = 24 * time.Hour

const dateLayout = "2006-01-02 15:04:05"

// FormatCharacter renders a whois reply for a main and its alts.
func FormatCharacter(info *CharacterInfo, region string) string {
	var b strings.Builder
	b.WriteString("**Main:**\n")
	writeCharacter(&b, info.Main, region)

	if len(info.Alts) > 0 {
		b.WriteString("\n**Alts:**\n")
		for _, alt := range info.Alts {
			writeCharacter(&b, alt, region)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func writeCharacter(b *strings.Builder, r model.DashboardRow, region string) {
	class := r.Class
	if class == "" {
		class = "Unknown"
	}
	fmt.Fprintf(b, "%s **%s** — %s\n", ClassEmoji(r.Class), r.Name, class)
	fmt.Fprintf(b, "Realm: %s (%s)\n", r.Realm, strings.ToUpper(region))
	fmt.Fprintf(b, "iLvl: %d\n", r.ItemLevel)
	fmt.Fprintf(b, "Last Login: %s\n", r.LastLogin)
}

// NotFound describes a failed whois lookup.
type NotFound struct {
	Name        string
	UserID      string
	ModifiedAt  time.Time
	Suggestions []string
}

// FormatNotFound renders the reply for an unknown character. A zero
// ModifiedAt means no dashboard exists yet.
func FormatNotFound(nf NotFound, now time.Time, loc *time.Location) string {
	var b strings.Builder
	if nf.UserID != "" {
		fmt.Fprintf(&b, "<@%s>, ", nf.UserID)
	}
	fmt.Fprintf(&b, "character **%s** not found in guild roster. "+
		"Please check the character name and try again. "+
		"If the character name is correct, please contact the server administrator.", nf.Name)

	if len(nf.Suggestions) > 0 {
		quoted := make([]string, len(nf.Suggestions))
		for i, s := range nf.Suggestions {
			quoted[i] = "**" + s + "**"
		}
		fmt.Fprintf(&b, " Did you mean %s?", strings.Join(quoted, ", "))
	}

	if !nf.ModifiedAt.IsZero() {
		if loc == nil {
			loc = time.UTC
		}
		fmt.Fprintf(&b, " Last date of guild roster update was %s.", nf.ModifiedAt.In(loc).Format(dateLayout))
		if now.Sub(nf.ModifiedAt) > StaleAfter {
			b.WriteString(" The guild roster is outdated. Please contact the server " +
				"administrator to update the guild roster.")
		}
	}
	return b.String()
}
