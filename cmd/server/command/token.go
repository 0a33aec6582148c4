package command

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sound-rental/internal/config"
	"github.com/iliyamo/sound-rental/internal/utils"
)

var (
	operatorID string
	tokenTTL   int
)

// There is no login flow for operators: a token is minted here by whoever
// holds JWT_SECRET and handed to the operator.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed operator JWT for the /v1/admin endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		ttl := tokenTTL
		if !cmd.Flags().Changed("ttl") {
			ttl = config.OperatorTokenTTLMin()
		}
		tok, err := utils.NewOperatorToken(secret, operatorID, ttl)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tok)
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&operatorID, "operator", "o", "", "operator identifier stored in the sub claim")
	tokenCmd.Flags().IntVar(&tokenTTL, "ttl", 0, "token lifetime in minutes (default OPERATOR_TOKEN_TTL_MIN)")
	_ = tokenCmd.MarkFlagRequired("operator")
	rootCmd.AddCommand(tokenCmd)
}
