// Command helix is a thin wiring stub over the repo package: enough to
// exercise init/status/commit end to end. A full command-line parser,
// TUI and commit-message generator are not implemented here; this binary
// exists to prove the wiring, not to be a complete porcelain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/helixvcs/helix/internal/repo"
	"github.com/helixvcs/helix/plumbing/object"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "commit":
		err = runCommit(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "helix:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: helix <init|status|commit|watch> [flags]")
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	branch := fs.String("b", "heads/main", "default branch name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}
	_, err = repo.Init(root, *branch, slog.Default())
	return err
}

func runStatus(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}

	for _, e := range r.Index.GetStaged() {
		fmt.Printf("staged:    %s\n", e.Path)
	}
	for _, e := range r.Index.GetModified() {
		fmt.Printf("modified:  %s\n", e.Path)
	}
	for _, e := range r.Index.GetDeleted() {
		fmt.Printf("deleted:   %s\n", e.Path)
	}
	for _, e := range r.Index.GetUntracked() {
		fmt.Printf("untracked: %s\n", e.Path)
	}
	return nil
}

func runCommit(args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("commit: -m message is required")
	}

	r, err := openRepo()
	if err != nil {
		return err
	}

	if err := r.Sync.FullRebuild(); err != nil {
		return fmt.Errorf("commit: rebuild index: %w", err)
	}

	digest, err := r.Commit(*message, func() object.Signature {
		return object.Signature{When: time.Now()}
	})
	if err != nil {
		return err
	}

	fmt.Println(digest.String())
	return nil
}

// runWatch keeps the index incrementally reconciled against worktree
// changes until interrupted, the long-running counterpart to commit's
// one-shot FullRebuild.
func runWatch(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "helix: watching for changes, press Ctrl-C to stop")
	return r.WatchAndSync(ctx)
}

func openRepo() (*repo.Repository, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return repo.Open(root, filepath.Join(root, ".helix", "config.toml"), slog.Default())
}
