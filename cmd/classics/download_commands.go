package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/japaniel/classics/pkg/archive"
	"github.com/japaniel/classics/pkg/download"
	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		workers   int
		translate string
		source    string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every cataloged work, most viewed first",
		Long: `Download fetches the full text of every cataloged work in order of views,
highest first. Files are named with their rank, so the top work is stored as
rank1-<title>. A failed work is reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.archive(cmd.Context(), translate != "", workers)
			if err != nil {
				return err
			}
			report, err := a.Download(cmd.Context())
			if err != nil && len(report.Items) == 0 {
				return err
			}
			printReport(cmd, report)
			if err != nil {
				return err
			}
			if translate == "" {
				return nil
			}
			if len(report.Items) == 0 || !report.Items[0].OK() {
				fmt.Fprintln(cmd.OutOrStdout(), "The top-ranked work was not downloaded; skipping translation.")
				return nil
			}
			if source == "" {
				source = ctx.cfg.Translation.Source
			}
			res, err := a.TranslateTop(cmd.Context(), translate, source)
			if err != nil {
				return err
			}
			printTranslation(cmd, res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel downloads (default from config)")
	cmd.Flags().StringVar(&translate, "translate", "", "Translate the top-ranked work into this language afterwards")
	cmd.Flags().StringVar(&source, "source", "", "Source language of the top-ranked work (default auto)")
	return cmd
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var target, source string
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate the current top-ranked download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = ctx.cfg.Translation.Target
			}
			if source == "" {
				source = ctx.cfg.Translation.Source
			}
			a, err := ctx.archive(cmd.Context(), true, 0)
			if err != nil {
				return err
			}
			res, err := a.TranslateTop(cmd.Context(), target, source)
			if err != nil {
				return err
			}
			printTranslation(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language (default from config)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source language (default auto)")
	return cmd
}

func printReport(cmd *cobra.Command, report download.Report) {
	out := cmd.OutOrStdout()
	if len(report.Items) == 0 {
		fmt.Fprintln(out, "No works to download.")
		return
	}
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		result := describeErrOrSize(item)
		rows = append(rows, []string{
			strconv.Itoa(item.Rank),
			strconv.FormatInt(item.WorkID, 10),
			item.Title,
			item.Library,
			result,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Rank", "ID", "Title", "Library", "Result"},
		rows,
		0, 1,
	))
	fmt.Fprintf(out, "Downloaded %d of %d works in %s.\n",
		report.Downloaded, len(report.Items), report.Elapsed.Round(time.Millisecond))
}

func describeErrOrSize(item download.Outcome) string {
	if !item.OK() {
		return describeErr(item.Err)
	}
	info, err := os.Stat(item.Path)
	if err != nil {
		return item.Path
	}
	return fmt.Sprintf("%s (%s)", item.Path, humanize.Bytes(uint64(info.Size())))
}

func printTranslation(cmd *cobra.Command, res archive.TranslateResult) {
	out := cmd.OutOrStdout()
	if res.Resumed > 0 {
		fmt.Fprintf(out, "Resumed after %d of %d chunks.\n", res.Resumed, res.Chunks)
	}
	fmt.Fprintf(out, "Translated %s (%d chunks) to %s\n", res.SourcePath, res.Chunks, res.OutputPath)
	if res.WorkID == 0 {
		fmt.Fprintln(out, "The file is not in the catalog; the translation was not recorded.")
	}
}
