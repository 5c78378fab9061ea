package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-gavel-ratings/internal/application"
)

type analyzeOptions struct {
	faculty  string
	courses  []string
	textFile string
	images   []string
	asJSON   bool
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze feedback text or screenshots and store the review",
		Example: "  gavel-ratings analyze --faculty \"Ada Lovelace\" --course CS101 --text-file feedback.txt\n" +
			"  gavel-ratings analyze --faculty \"Ada Lovelace\" --image page1.png --image page2.png",
		Args: cobra.NoArgs,
		RunE: withApp(opts, requiredGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			return runAnalyze(cmd, a, o)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&o.faculty, "faculty", "", "faculty name")
	f.StringSliceVar(&o.courses, "course", nil, "course code; repeat or comma separate for several")
	f.StringVar(&o.textFile, "text-file", "", "file holding feedback text, or - for stdin")
	f.StringArrayVar(&o.images, "image", nil, "screenshot file; repeat for several")
	f.BoolVar(&o.asJSON, "json", false, "print the stored result as JSON instead of the report")
	_ = cmd.MarkFlagRequired("faculty")
	cmd.MarkFlagsMutuallyExclusive("text-file", "image")
	cmd.MarkFlagsOneRequired("text-file", "image")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, o *analyzeOptions) error {
	ctx := cmd.Context()
	req := application.AnalysisRequest{
		FacultyName: o.faculty,
		CourseCodes: application.ParseCourseCodes(strings.Join(o.courses, ",")),
	}

	var (
		res *application.AnalysisResult
		err error
	)
	if o.textFile != "" {
		if req.Text, err = readText(cmd, o.textFile); err != nil {
			return err
		}
		res, err = a.analyzer.AnalyzeText(ctx, req)
	} else {
		if req.Images, err = a.analyzer.LoadImages(ctx, o.images); err != nil {
			return err
		}
		res, err = a.analyzer.AnalyzeScreenshots(ctx, req)
	}
	if err != nil {
		return err
	}

	if o.asJSON {
		return printJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, res.Report); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\nstored review %d for faculty %d\n", res.ReviewID, res.FacultyID)
	return err
}

func readText(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return "", fmt.Errorf("read feedback: %w", err)
	}
	return string(data), nil
}
