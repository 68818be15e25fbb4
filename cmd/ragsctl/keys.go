package main

import (
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

type keyView struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Algorithm types.Algorithm `json:"algorithm"`
	Address   string          `json:"address"`
	Status    string          `json:"status"`
	ExpiresAt any             `json:"expires_at,omitempty"`
}

func viewKey(k *repository.AccountKey) keyView {
	v := keyView{
		ID:        k.ID,
		AccountID: k.AccountID,
		Algorithm: k.Algorithm,
		Address:   k.Address(),
		Status:    string(k.Status),
	}
	if k.ExpiresAt != nil {
		v.ExpiresAt = k.ExpiresAt
	}
	return v
}

func newKeyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "key", Short: "Provisión, rotación y revocación de claves"}

	var account, alg string
	accountFlags := func(sub *cobra.Command) {
		sub.Flags().StringVar(&account, "account", "", "Account id")
		sub.Flags().StringVar(&alg, "alg", string(types.AlgEC256), "Algoritmo: EC256|PQC-A|PQC-B")
		_ = sub.MarkFlagRequired("account")
	}

	provision := &cobra.Command{
		Use:   "provision",
		Short: "Genera una clave activa para la cuenta",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			k, err := ct.Keys.Provision(cmd.Context(), account, types.Algorithm(alg))
			if err != nil {
				return err
			}
			return c.print(viewKey(k))
		},
	}
	accountFlags(provision)

	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Rota la clave activa; la anterior queda en gracia",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			k, err := ct.Keys.Rotate(cmd.Context(), account, types.Algorithm(alg))
			if err != nil {
				return err
			}
			return c.print(viewKey(k))
		},
	}
	accountFlags(rotate)

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoca una clave de inmediato",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			if err := ct.Keys.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.print(map[string]string{"key_id": args[0], "status": string(repository.KeyRevoked)})
		},
	}

	var listAccount string
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista las claves de una cuenta",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			ks, err := ct.Keys.ListKeys(cmd.Context(), listAccount)
			if err != nil {
				return err
			}
			out := make([]keyView, 0, len(ks))
			for i := range ks {
				out = append(out, viewKey(&ks[i]))
			}
			return c.print(out)
		},
	}
	list.Flags().StringVar(&listAccount, "account", "", "Account id")
	_ = list.MarkFlagRequired("account")

	cmd.AddCommand(provision, rotate, revoke, list)
	return cmd
}
