package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/http/dto"
	"github.com/dropDatabas3/ragsig/internal/rags"
	"github.com/dropDatabas3/ragsig/internal/store/dal"
	"github.com/dropDatabas3/ragsig/internal/sweeper"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas (sólo postgres)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := dal.Migrate(cmd.Context(), ct.Data.Conn)
			if err != nil {
				return err
			}
			return c.print(map[string]any{"driver": ct.Data.Conn.Name(), "applied": applied})
		},
	}
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Corre una pasada de purga de nonces y reconciliación",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]int64{}
			var errs []error
			for _, t := range ct.Sweeper().Tasks() {
				n, err := sweeper.RunOnce(cmd.Context(), t)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
					continue
				}
				out[t.Name] = n
			}
			if err := c.print(out); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}

// newSignCmd imprime un dto.ValidateRequest listo para POST /v1/rags/validate
// o para ragsctl verify.
func newSignCmd(c *cli) *cobra.Command {
	var service, account, alg, message, address string
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Firma un mensaje con RAGS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			req := rags.SignRequest{
				ServiceName: service,
				Message:     []byte(message),
				Algorithm:   types.Algorithm(alg),
				Address:     address,
				Metadata:    meta,
			}
			var env *rags.Envelope
			if account != "" {
				env, err = ct.Signer.SignForAccount(cmd.Context(), account, req)
			} else {
				env, err = ct.Signer.Sign(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return c.print(dto.ValidateRequest{
				AccountID:   account,
				ServiceName: service,
				Message:     req.Message,
				Signature:   env.Signature,
				Algorithm:   string(env.Algorithm),
				Nonce:       env.Nonce,
				Address:     env.Address,
				Timestamp:   env.Timestamp,
				Metadata:    meta,
			})
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Service name (contexto de la firma; resuelve la cuenta si no hay --account)")
	cmd.Flags().StringVar(&account, "account", "", "Account id que firma")
	cmd.Flags().StringVar(&alg, "alg", string(types.AlgEC256), "Algoritmo: EC256|PQC-A|PQC-B")
	cmd.Flags().StringVar(&message, "message", "", "Mensaje a firmar")
	cmd.Flags().StringVar(&address, "address", "", "Address de una clave específica (opcional)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Metadata k=v incluida en el payload")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Valida un envelope (JSON de ragsctl sign) y consume su nonce",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var in dto.ValidateRequest
			if err := json.NewDecoder(r).Decode(&in); err != nil {
				return fmt.Errorf("decode envelope: %w", err)
			}
			req := rags.ValidateRequest{
				ServiceName: in.ServiceName,
				Message:     in.Message,
				Signature:   in.Signature,
				Algorithm:   types.Algorithm(in.Algorithm),
				Nonce:       in.Nonce,
				Address:     in.Address,
				Metadata:    in.Metadata,
				Timestamp:   in.Timestamp,
				RequestType: "cli.verify",
			}
			var res *rags.Result
			if in.AccountID != "" {
				res, err = ct.Validator.ValidateForAccount(cmd.Context(), in.AccountID, req)
			} else {
				res, err = ct.Validator.Validate(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return c.print(dto.ValidateResponse{
				Valid:     true,
				AccountID: res.AccountID,
				KeyID:     res.KeyID,
				Address:   res.Address,
				Algorithm: string(res.Algorithm),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Archivo con el envelope JSON (- = stdin)")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var account string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un bearer token HS256 para la API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := c.ensure(cmd.Context())
			if err != nil {
				return err
			}
			if ct.Issuer == nil {
				return errors.New("auth.jwt_secret is not configured")
			}
			if _, err := ct.Keys.Account(cmd.Context(), account); err != nil {
				return err
			}
			iss := *ct.Issuer
			if ttl > 0 {
				iss.TTL = ttl
			}
			tok, exp, err := iss.Issue(account)
			if err != nil {
				return err
			}
			return c.print(map[string]any{"token": tok, "expires_at": exp})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account id (claim sub)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Vida del token (default 1h)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
