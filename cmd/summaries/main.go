package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/neurlang/convtrain/envconfig"
	"github.com/neurlang/convtrain/logutil"
	"github.com/neurlang/convtrain/params"
	"github.com/neurlang/convtrain/summary"
)

func openReader(cmd *cobra.Command) (*summary.Reader, error) {
	config, _ := cmd.Flags().GetString("config")
	return summary.OpenReader(summary.Path(envconfig.TrainDir(config)))
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the runs and the latest value of every scalar",
		Args:    cobra.NoArgs,
		RunE:    ListHandler,
	}
}

func ListHandler(cmd *cobra.Command, _ []string) error {
	r, err := openReader(cmd)
	if err != nil {
		return err
	}
	defer r.Close()
	return list(cmd.Context(), cmd.OutOrStdout(), r)
}

func list(ctx context.Context, w io.Writer, r *summary.Reader) error {
	runs, err := r.Runs(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RUN", "STARTED"})
	table.SetBorder(false)
	for _, run := range runs {
		table.Append([]string{run.ID, run.Started.Format("2006-01-02 15:04:05")})
	}
	table.Render()
	if len(runs) == 0 {
		return nil
	}
	last := runs[len(runs)-1].ID

	tags, err := r.Tags(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"TAG", "STEP", "VALUE"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, tag := range tags {
		scalars, err := r.Scalars(ctx, tag)
		if err != nil {
			return err
		}
		for i := len(scalars) - 1; i >= 0; i-- {
			if s := scalars[i]; s.Run == last {
				table.Append([]string{tag, fmt.Sprint(s.Step), fmt.Sprintf("%.4f", s.Value)})
				break
			}
		}
	}
	table.Render()
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Serve the summaries as JSON",
		Args:    cobra.NoArgs,
		RunE:    ServeHandler,
	}
}

func ServeHandler(cmd *cobra.Command, _ []string) error {
	r, err := openReader(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	ln, err := net.Listen("tcp", envconfig.Host())
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: (&Server{r: r}).Routes()}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()
	slog.Info("Listening on " + ln.Addr().String())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "summaries",
		Short:         "Read the summaries of a training directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().String("config", params.DefaultConfig, "Params file the training directory was created from")
	root.AddCommand(newListCmd(), newServeCmd())
	return root
}

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	if err := newCLI().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
