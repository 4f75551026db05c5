package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/groster/groster/pkg/discord"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the /whois and /ping guild commands with Discord",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("register"); err != nil {
			return err
		}

		client, err := discord.NewClient(cfg.Discord.AppID, cfg.Discord.GuildID, cfg.Discord.BotToken,
			discord.WithBaseURL(cfg.Discord.BaseURL),
		)
		if err != nil {
			return err
		}

		for _, c := range []discord.ApplicationCommand{discord.WhoisCommand, discord.PingCommand} {
			out, err := client.RegisterGuildCommand(ctx, c)
			if err != nil {
				return err
			}
			zap.L().Info("command registered", zap.String("name", out.Name), zap.String("id", out.ID))
			fmt.Fprintf(os.Stdout, "Registered /%s (id %s)\n", out.Name, out.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
