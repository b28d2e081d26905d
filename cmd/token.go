package cmd

import (
	"fmt"
	"time"

	"showmerge/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发API访问令牌",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.GenerateToken(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "dashboard", "令牌主体")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
