package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containifyci/repostack/pkg/contentsvc"
	"github.com/containifyci/repostack/pkg/filesystem"
	"github.com/containifyci/repostack/pkg/heuristiclog"

	"github.com/spf13/cobra"
)

type contentCmdArgs struct {
	Addr     string
	CacheDir string
}

var contentArgs = &contentCmdArgs{}

var contentCmd = &cobra.Command{
	Use:   "content-service",
	Short: "Serve the cache-blob content store over gRPC",
	Long: `content-service exposes the content-addressed blob store used during
builds (Info, Status, Abort, Read, Write) on a gRPC listener. It runs
until interrupted; SIGINT/SIGTERM drain in-flight streams and stop it.`,
	RunE: runContentService,
}

func init() {
	contentCmd.Flags().StringVar(&contentArgs.Addr, "addr", "127.0.0.1:8484", "Listen address")
	contentCmd.Flags().StringVar(&contentArgs.CacheDir, "cache-dir", "", "Blob store directory (default ~/.repostack/content)")
	rootCmd.AddCommand(contentCmd)
}

func runContentService(cmd *cobra.Command, _ []string) error {
	dir := contentArgs.CacheDir
	if dir == "" {
		dir = fmt.Sprintf("%s/.repostack/content", filesystem.HomeDir())
	}
	store, err := contentsvc.NewStore(dir)
	if err != nil {
		return err
	}

	hlog, err := heuristiclog.NewProduction()
	if err != nil {
		return err
	}
	server := contentsvc.NewServer(contentsvc.NewService(store, hlog))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		server.Stop()
	}()

	return server.ListenAndServe(contentArgs.Addr)
}
