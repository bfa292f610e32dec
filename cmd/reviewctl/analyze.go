package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"

	appreview "github.com/bryanwahyu/automaton-review/internal/application/review"
	"github.com/bryanwahyu/automaton-review/internal/config"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/infra/httpserver"
)

func newAnalyzeCmd(newService serviceFactory, configPath *string, exitCode *int) *cobra.Command {
	var (
		model   string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file|dir|zip|->",
		Short: "Review a source file, a directory, a zip archive, or code on stdin",
		Long: "Review code with the configured AI provider and print the same JSON body " +
			"POST /api/analyze would return. A directory is zipped in memory first; '-' reads pasted code from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if model != "" {
				cfg.AI.Model = model
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			if !compact {
				enc.SetIndent("", "  ")
			}

			sub, err := readInput(args[0], cmd.InOrStdin(), cfg.Limits.MaxUploadBytes)
			if err == nil {
				var res *domain.Result
				res, err = newService(cmd.Context(), cfg).Analyze(cmd.Context(), sub)
				if err == nil {
					return enc.Encode(httpserver.NewAnalyzeResponse(res))
				}
			}

			*exitCode = exitCodeFor(err)
			fmt.Fprintf(cmd.ErrOrStderr(), "analyze: %v\n", err)
			return enc.Encode(httpserver.ErrorResponse{
				Error:  domain.UserMessage(err),
				Issues: appreview.Normalizer{}.Error(err),
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Override the configured model")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print JSON on a single line")
	return cmd
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUpstreamAuth):
		return ExitAuthError
	case domain.IsClientError(err):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

// readInput turns the analyze argument into a submission under the same size
// limit the server enforces.
func readInput(arg string, stdin io.Reader, maxBytes int64) (domain.Submission, error) {
	if arg == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, maxBytes+1))
		if err != nil {
			return domain.Submission{}, err
		}
		if int64(len(data)) > maxBytes {
			return domain.Submission{}, domain.ErrFileTooLarge
		}
		return domain.Submission{Kind: domain.KindPaste, Code: string(data)}, nil
	}

	info, err := os.Stat(arg)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %v", domain.ErrNoFileUploaded, err)
	}
	if info.IsDir() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return domain.Submission{}, err
		}
		data, err := zipDir(abs, maxBytes)
		if err != nil {
			return domain.Submission{}, err
		}
		return domain.NewUpload(filepath.Base(abs)+".zip", data), nil
	}
	if info.Size() > maxBytes {
		return domain.Submission{}, domain.ErrFileTooLarge
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.NewUpload(filepath.Base(arg), data), nil
}

// zipDir packs the supported files under root, skipping excluded directories,
// so a directory travels the same archive path as an uploaded zip.
func zipDir(root string, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && domain.IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !domain.IsSupportedFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
		if int64(buf.Len()) > maxBytes {
			return domain.ErrFileTooLarge
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	return buf.Bytes(), nil
}
