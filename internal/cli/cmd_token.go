package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"thesiscert/internal/auth"
	"thesiscert/internal/model"
)

func NewCmdToken(out io.Writer, cfg *Config) *cobra.Command {
	var (
		actor model.Actor
		role  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an actor token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("jwt secret is required (--jwt-secret or THESISCTL_JWT_SECRET)")
			}
			actor.Role = model.Role(role)
			if actor.ID == "" || !actor.Role.Valid() {
				return fmt.Errorf("a subject and one of the roles user, institution_admin, admin are required")
			}
			tokens, err := auth.NewTokens(cfg.JWTSecret)
			if err != nil {
				return err
			}
			tok, err := tokens.Issue(actor, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&actor.ID, "sub", "", "Actor id")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Actor role")
	cmd.Flags().StringSliceVar(&actor.InstitutionIDs, "institution", nil, "Affiliated institution id (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
