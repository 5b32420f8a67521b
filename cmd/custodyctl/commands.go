package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/handlecodec"
	"kredilakay/internal/infra/keys/material"
	"kredilakay/internal/infra/keys/vaultkv"
	"kredilakay/internal/infra/seal"
	"kredilakay/internal/usecase"

	"filippo.io/age"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) produceCmd() *cobra.Command {
	var (
		watermark bool
		qr        bool
		sealImage bool
		signer    string
	)
	cmd := &cobra.Command{
		Use:   "produce <spec.yaml>",
		Short: "Compose, annotate, seal and store a document; prints its handle token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadSpecFile(args[0])
			if err != nil {
				return err
			}
			if watermark && req.Overlays.WatermarkText == nil {
				text := c.cfg.WatermarkText
				req.Overlays.WatermarkText = &text
			}
			if qr && req.Overlays.VerificationURL == nil {
				empty := ""
				req.Overlays.VerificationURL = &empty
			}
			if sealImage {
				req.Overlays.SecuritySeal = true
			}
			if cmd.Flags().Changed("signer") {
				req.SignerRef = signer
			}
			return c.withApp(cmd, func(a *app) error {
				handle, err := a.custody.Produce(cmd.Context(), req)
				if err != nil {
					return err
				}
				token, err := handlecodec.Encode(handle)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watermark, "watermark", false, "Stamp the configured watermark text")
	cmd.Flags().BoolVar(&qr, "verification-qr", false, "Stamp a verification QR code pointing at the default URL")
	cmd.Flags().BoolVar(&sealImage, "security-seal", false, "Stamp the security seal image")
	cmd.Flags().StringVar(&signer, "signer", "", "Signing identity reference; empty produces an unsigned document")
	return cmd
}

func (c *cli) retrieveCmd() *cobra.Command {
	var (
		out string
		id  string
	)
	cmd := &cobra.Command{
		Use:   "retrieve [handle-token]",
		Short: "Decrypt and verify a stored document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (id != "") {
				return errors.New("pass either a handle token or --id")
			}
			return c.withApp(cmd, func(a *app) error {
				var (
					res usecase.RetrieveResult
					err error
				)
				if id != "" {
					if !a.persistent {
						return errNoDatabase
					}
					res, err = a.custody.RetrieveByID(cmd.Context(), id)
				} else {
					handle, decErr := handlecodec.Decode(args[0])
					if decErr != nil {
						return decErr
					}
					res, err = a.custody.Retrieve(cmd.Context(), handle)
				}
				if err != nil {
					if !res.Report.CheckedAt.IsZero() {
						printReport(cmd, res.Report)
					}
					return err
				}
				printReport(cmd, res.Report)
				if err := printSummary(cmd, res.Artifact); err != nil {
					return err
				}
				if err := os.WriteFile(out, res.Artifact.Content, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(res.Artifact.Content))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "document.pdf", "Where to write the retrieved PDF")
	cmd.Flags().StringVar(&id, "id", "", "Handle id to look up in the handle store")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var checksum string
	cmd := &cobra.Command{
		Use:   "verify <file.pdf>",
		Short: "Check a PDF's checksum and embedded signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			artifact := domain.Artifact{Content: content, ContentHash: checksum}
			if checksum == "" {
				artifact.ContentHash = domain.SHA256Hex(content)
			}
			roots, err := trustRoots(c.cfg)
			if err != nil {
				return err
			}
			report := seal.New(roots).Verify(cmd.Context(), artifact)
			printReport(cmd, report)
			if err := printSummary(cmd, artifact); err != nil {
				return err
			}
			if !report.IsValid {
				return &domain.VaultError{Kind: domain.ErrIntegrityViolation, Err: errors.New("verification failed")}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected SHA-256 of the file, hex")
	return cmd
}

func (c *cli) handleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Inspect handle tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "decode <handle-token>",
		Short: "Print the fields of a handle token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := handlecodec.Decode(args[0])
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(handleView(handle))
		},
	})
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify [subject-id]",
		Short: "Verify the audit hash chain of a subject, or the system stream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream := domain.AuditSystemStream
			if len(args) == 1 {
				stream = args[0]
			}
			return c.withApp(cmd, func(a *app) error {
				if !a.persistent {
					return errNoDatabase
				}
				if err := usecase.VerifyAuditChain(cmd.Context(), a.audit, stream); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "audit chain %s: ok\n", stream)
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Vault key material",
	}
	var keyID string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a data key and age identity; stores them when KEY_SOURCE=vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := newKeyRecord()
			if err != nil {
				return err
			}
			if keyID == "" {
				keyID = c.cfg.EncryptionKeyID
			}
			if c.cfg.KeySource != config.KeySourceVault {
				fmt.Fprintf(cmd.OutOrStdout(), "ENCRYPTION_KEY_ID=%s\nENCRYPTION_KEY_HEX=%s\nAGE_IDENTITY=%s\n", keyID, rec.DataKeyHex, rec.AgeIdentity)
				return nil
			}
			custodian, err := vaultkv.NewFromConfig(c.cfg)
			if err != nil {
				return err
			}
			if err := custodian.PutKey(cmd.Context(), keyID, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored key %s\n", keyID)
			return nil
		},
	}
	generate.Flags().StringVar(&keyID, "key-id", "", "Key id; defaults to ENCRYPTION_KEY_ID")
	cmd.AddCommand(generate)
	return cmd
}

func newKeyRecord() (material.KeyRecord, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return material.KeyRecord{}, err
	}
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return material.KeyRecord{}, err
	}
	return material.KeyRecord{DataKeyHex: hex.EncodeToString(key), AgeIdentity: id.String()}, nil
}

func printReport(cmd *cobra.Command, report domain.VerificationReport) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "valid: %t\nchecksum match: %t\n", report.IsValid, report.ChecksumMatch)
	for _, sig := range report.Signatures {
		if sig.Error != "" {
			fmt.Fprintf(w, "signature: %s valid=%t error=%s\n", sig.Signer, sig.Valid, sig.Error)
			continue
		}
		fmt.Fprintf(w, "signature: %s valid=%t signed_at=%s\n", sig.Signer, sig.Valid, sig.Timestamp.Format(time.RFC3339))
	}
}

// printSummary writes the artifact's seal summary to stdout as YAML.
func printSummary(cmd *cobra.Command, artifact domain.Artifact) error {
	return yaml.NewEncoder(cmd.OutOrStdout()).Encode(seal.Summary(artifact))
}

type handleYAML struct {
	ID            string `yaml:"id"`
	SubjectID     string `yaml:"subject_id"`
	Kind          string `yaml:"kind"`
	Backend       string `yaml:"storage_backend"`
	Locator       string `yaml:"storage_locator"`
	ContentHash   string `yaml:"content_hash"`
	EncryptedSize int64  `yaml:"encrypted_size"`
	OriginalSize  int64  `yaml:"original_size"`
	Algorithm     string `yaml:"algorithm"`
	KeyID         string `yaml:"key_id"`
	PageCount     int    `yaml:"page_count"`
	Signed        bool   `yaml:"signed"`
	CreatedAt     string `yaml:"created_at"`
}

func handleView(h domain.SealedArtifactHandle) handleYAML {
	return handleYAML{
		ID:            h.ID,
		SubjectID:     h.SubjectID,
		Kind:          string(h.Kind),
		Backend:       string(h.StorageBackend),
		Locator:       h.StorageLocator,
		ContentHash:   h.ContentHash,
		EncryptedSize: h.EncryptedSize,
		OriginalSize:  h.OriginalSize,
		Algorithm:     h.Algorithm,
		KeyID:         h.KeyID,
		PageCount:     h.PageCount,
		Signed:        h.Signed,
		CreatedAt:     h.CreatedAt.Format(time.RFC3339Nano),
	}
}
