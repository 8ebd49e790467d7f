package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/vaultindex/internal/database"
	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/ocr"
)

func newFixStuckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-stuck",
		Short: "Finish or fail documents left in processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.Ingest.FixStuckDocuments(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newIngestCmd() *cobra.Command {
	var (
		scope     string
		projectID string
		title     string
		number    string
		tags      []string
		text      string
		filename  string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a PDF or text file, or --text with --filename",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 && (text == "" || filename == "") {
				return errors.New("pass a file or both --text and --filename")
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req := ingest.Request{
				Scope:          model.Scope(scope),
				ProjectID:      projectID,
				Filename:       filename,
				Title:          title,
				Text:           text,
				DocumentNumber: number,
				Tags:           tags,
			}
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if req.Filename == "" {
					req.Filename = filepath.Base(args[0])
				}
				sniff := data
				if len(sniff) > 512 {
					sniff = sniff[:512]
				}
				if mt := http.DetectContentType(sniff); ocr.IsPDF(mt) {
					req.BlobRef = fmt.Sprintf("uploads/%s/%s", uuid.NewString(), filepath.Base(args[0]))
					req.MimeType = mt
					if err := a.Blobs.Put(ctx, req.BlobRef, data, mt); err != nil {
						return fmt.Errorf("store blob: %w", err)
					}
				} else {
					req.Text = string(data)
				}
			}

			res, err := a.Ingest.Ingest(ctx, req)
			if err != nil {
				return err
			}
			out := map[string]any{
				"documentId":   res.DocumentID,
				"status":       res.Status,
				"indexEntryId": res.EntryID,
			}
			if res.Err != nil {
				out["error"] = res.Err.Error()
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(model.ScopeGlobal), "global or project")
	cmd.Flags().StringVar(&projectID, "project", "", "Project id for project scope")
	cmd.Flags().StringVar(&title, "title", "", "Display title (defaults to the filename)")
	cmd.Flags().StringVar(&number, "number", "", "Document number")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag, repeatable")
	cmd.Flags().StringVar(&text, "text", "", "Raw text to ingest instead of a file")
	cmd.Flags().StringVar(&filename, "filename", "", "Filename to record (defaults to the file's base name)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Delete documents with their blobs and unshared index entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, id := range args {
				if err := a.Ingest.DeleteDocument(ctx, id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var (
		status    string
		scope     string
		projectID string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List documents and their pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			docs, err := a.Ingest.Documents(ctx, model.DocumentFilter{
				Scope:     model.Scope(scope),
				ProjectID: projectID,
				Status:    model.Status(status),
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return printDocuments(cmd.OutOrStdout(), docs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only this status (pending, processing, done, duplicate, error)")
	cmd.Flags().StringVar(&scope, "scope", "", "Only this scope")
	cmd.Flags().StringVar(&projectID, "project", "", "Only this project")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDocuments(w io.Writer, docs []model.Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSCOPE\tFILENAME\tUPDATED\tERROR")
	for _, d := range docs {
		scope := string(d.Scope)
		if d.ProjectID != "" {
			scope += ":" + d.ProjectID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, statusColor(d.Status), scope, d.Filename,
			d.UpdatedAt.Format("2006-01-02 15:04:05"), strings.TrimSpace(d.Error))
	}
	return tw.Flush()
}

func statusColor(s model.Status) string {
	switch s {
	case model.StatusDone:
		return color.GreenString(string(s))
	case model.StatusDuplicate:
		return color.YellowString(string(s))
	case model.StatusError:
		return color.RedString(string(s))
	}
	return string(s)
}
