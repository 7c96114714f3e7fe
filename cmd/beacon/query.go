package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beaconsearch/beacon/internal/query"
	"github.com/beaconsearch/beacon/internal/resultset"
	"github.com/beaconsearch/beacon/pkg/api"
)

type queryFlags struct {
	body           string
	file           string
	mode           string
	skip           int
	limit          int
	filteringTerms bool
}

func newQueryCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query [variant-id [biosamples|individuals|runs|analyses]]",
		Short: "Run one entry point against the configured store and print the page as JSON",
		Example: `  beacon query --body '{"requestParameters":{"start":"150"}}'
  beacon query v200 --mode MISS
  beacon query v200 biosamples --limit 50
  beacon query --filtering-terms`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := f.requestBody(cmd)
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			h := a.handler()
			req, err := query.ParseRequest(body, h.Limits())
			if err != nil {
				return err
			}

			var page resultset.Page
			ctx := cmd.Context()
			switch {
			case f.filteringTerms:
				page, err = h.ListFilteringTerms(ctx, req)
			case len(args) == 0:
				page, err = h.SearchVariants(ctx, req)
			case len(args) == 1:
				page, err = h.GetVariantByID(ctx, args[0], req)
			default:
				page, err = h.GetRelated(ctx, args[1], args[0], req)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewPageResponse(page))
		},
	}
	cmd.Flags().StringVar(&f.body, "body", "", "Request body as JSON")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read the request body from a file (- for stdin)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "includeResultsetResponses: HIT, MISS, ALL or NONE")
	cmd.Flags().IntVar(&f.skip, "skip", 0, "Records to skip")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Page size")
	cmd.Flags().BoolVar(&f.filteringTerms, "filtering-terms", false, "List the variant filtering terms")
	cmd.MarkFlagsMutuallyExclusive("body", "file")
	return cmd
}

// requestBody decodes the body from --body or --file and applies the
// mode and pagination flags on top of it.
func (f *queryFlags) requestBody(cmd *cobra.Command) (map[string]any, error) {
	var raw []byte
	switch {
	case f.body != "":
		raw = []byte(f.body)
	case f.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		raw = data
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	body := map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if body == nil {
			body = map[string]any{}
		}
	}

	q := body
	if nested, ok := body["query"].(map[string]any); ok {
		q = nested
	}
	if f.mode != "" {
		q["includeResultsetResponses"] = f.mode
	}
	if cmd.Flags().Changed("skip") || cmd.Flags().Changed("limit") {
		p, _ := q["pagination"].(map[string]any)
		if p == nil {
			p = map[string]any{}
		}
		if cmd.Flags().Changed("skip") {
			p["skip"] = f.skip
		}
		if cmd.Flags().Changed("limit") {
			p["limit"] = f.limit
		}
		q["pagination"] = p
	}
	return body, nil
}
