package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

func newAccountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Alta y baja de cuentas"}

	var ownerType string
	create := &cobra.Command{
		Use:   "create <owner-ref>",
		Short: "Crea la cuenta de owner-ref (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			ot, err := parseOwnerType(ownerType)
			if err != nil {
				return err
			}
			a, err := ct.Keys.EnsureAccount(cmd.Context(), args[0], ot)
			if err != nil {
				return err
			}
			return c.print(a)
		},
	}
	create.Flags().StringVar(&ownerType, "type", "client", "Tipo de owner: client|system")

	deactivate := &cobra.Command{
		Use:   "deactivate <account-id>",
		Short: "Desactiva una cuenta; sus claves dejan de validar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			if err := ct.Keys.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.print(map[string]any{"account_id": args[0], "status": repository.AccountInactive})
		},
	}

	cmd.AddCommand(create, deactivate)
	return cmd
}

func parseOwnerType(s string) (repository.OwnerType, error) {
	switch strings.ToLower(s) {
	case "client":
		return repository.OwnerClient, nil
	case "system":
		return repository.OwnerSystem, nil
	}
	return "", types.Ef(types.KindInvalidInput, "owner type %q is not valid", s)
}
