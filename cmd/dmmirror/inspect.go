package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirrordb"
)

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "Show mirror statistics",
	Before: prepareApp,
	Action: withStore(cmdStats),
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Print statistics as JSON"},
	},
}

var historyCommand = &cli.Command{
	Name:      "history",
	Usage:     "Show a mirrored message and its edit history",
	ArgsUsage: "SOURCE_ID",
	Before:    prepareApp,
	Action:    withStore(cmdHistory),
}

var chainCommand = &cli.Command{
	Name:      "chain",
	Usage:     "Show the reply chain leading to a message, oldest first",
	ArgsUsage: "SOURCE_ID",
	Before:    prepareApp,
	Action:    withStore(cmdChain),
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "max-depth", Usage: "Maximum number of messages to follow", Value: 50},
	},
}

var checkpointCommand = &cli.Command{
	Name:   "checkpoint",
	Usage:  "Show the catch-up checkpoint",
	Before: prepareApp,
	Action: withStore(cmdCheckpoint),
	Subcommands: []*cli.Command{
		{
			Name:      "set",
			Usage:     "Overwrite the checkpoint, e.g. to replay history after restoring a backup",
			ArgsUsage: "SOURCE_ID",
			Action:    withStore(cmdSetCheckpoint),
		},
		{
			Name:      "release",
			Usage:     "Stop holding the checkpoint back for a message that keeps failing",
			ArgsUsage: "SOURCE_ID",
			Action:    withStore(cmdReleaseHold),
		},
	},
}

var generateConfigCommand = &cli.Command{
	Name:  "generate-config",
	Usage: "Write the example config",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "-",
			Usage:   "Output file path (- for stdout)",
		},
	},
	Action: cmdGenerateConfig,
}

func withStore(fn func(ctx *cli.Context, store *mirrordb.Store) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		store, closeStore, err := openStore(ctx.Context, getConfig(ctx), *getLogger(ctx))
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(ctx, store)
	}
}

func sourceIDArg(ctx *cli.Context) (mirror.SourceID, error) {
	if ctx.NArg() == 0 {
		return 0, fmt.Errorf("you must specify a source message id")
	}
	id, err := strconv.ParseInt(ctx.Args().Get(0), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid source message id %q", ctx.Args().Get(0))
	}
	return mirror.SourceID(id), nil
}

func cmdStats(ctx *cli.Context, store *mirrordb.Store) error {
	stats, err := store.Stats(ctx.Context)
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Printf("Messages:            %d (%d self, %d peer)\n", stats.TotalMessages, stats.SelfMessages, stats.PeerMessages)
	fmt.Printf("Edited:              %d (%d edit events)\n", stats.EditedMessages, stats.EditEvents)
	fmt.Printf("Deleted:             %d\n", stats.DeletedMessages)
	fmt.Printf("With media:          %d\n", stats.MediaMessages)
	fmt.Printf("View-once kept:      %d\n", stats.SelfDestructing)
	fmt.Printf("Unresolved replies:  %d\n", stats.UnresolvedReplies)
	fmt.Printf("Checkpoint:          %d\n", stats.LastProcessed)
	return nil
}

func printRecord(rec *mirror.MessageRecord) {
	fmt.Printf("#%d -> %d [%s, %s] %s\n", rec.SourceID, rec.DestID, rec.Sender, mirror.StateOf(rec), rec.CreatedAt.Format(time.RFC3339))
	if rec.HasMedia {
		fmt.Printf("  media: %s %s\n", rec.MediaKind, rec.MediaPath)
	}
	if rec.ReplyToSource != 0 {
		fmt.Printf("  reply to: #%d -> %d\n", rec.ReplyToSource, rec.ReplyToDest)
	}
	if rec.Content != "" {
		fmt.Printf("  %s\n", rec.Content)
	}
}

func cmdHistory(ctx *cli.Context, store *mirrordb.Store) error {
	id, err := sourceIDArg(ctx)
	if err != nil {
		return err
	}
	rec, err := store.GetMessage(ctx.Context, id)
	if err != nil {
		return err
	} else if rec == nil {
		return fmt.Errorf("message %d has not been mirrored", id)
	}
	printRecord(rec)
	edits, err := store.EditHistory(ctx.Context, id)
	if err != nil {
		return err
	}
	for i, edit := range edits {
		fmt.Printf("  edit %d at %s (notice %d)\n    - %s\n    + %s\n",
			i+1, edit.EditedAt.Format(time.RFC3339), edit.NotificationDestID, edit.OldContent, edit.NewContent)
	}
	return nil
}

func cmdChain(ctx *cli.Context, store *mirrordb.Store) error {
	id, err := sourceIDArg(ctx)
	if err != nil {
		return err
	}
	chain, err := store.ReplyChain(ctx.Context, id, ctx.Int("max-depth"))
	if err != nil {
		return err
	} else if len(chain) == 0 {
		return fmt.Errorf("message %d has not been mirrored", id)
	}
	for _, rec := range chain {
		printRecord(rec)
	}
	return nil
}

func cmdCheckpoint(ctx *cli.Context, store *mirrordb.Store) error {
	checkpoint, err := store.Checkpoint(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Println(checkpoint)
	holds, err := store.CheckpointHolds(ctx.Context)
	if err != nil {
		return err
	}
	for _, id := range holds {
		fmt.Printf("held for %d\n", id)
	}
	return nil
}

func cmdSetCheckpoint(ctx *cli.Context, store *mirrordb.Store) error {
	id, err := sourceIDArg(ctx)
	if err != nil {
		return err
	}
	if err = store.SetCheckpoint(ctx.Context, id); err != nil {
		return err
	}
	fmt.Printf("Checkpoint set to %d\n", id)
	return nil
}

func cmdGenerateConfig(ctx *cli.Context) error {
	output := ctx.String("output")
	if output == "-" {
		_, err := fmt.Print(config.ExampleConfig)
		return err
	}
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%s already exists", output)
	}
	if err := os.WriteFile(output, []byte(config.ExampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote example config to %s\n", output)
	return nil
}

func cmdReleaseHold(ctx *cli.Context, store *mirrordb.Store) error {
	id, err := sourceIDArg(ctx)
	if err != nil {
		return err
	}
	released, err := store.ReleaseCheckpointHold(ctx.Context, id)
	if err != nil {
		return err
	} else if !released {
		return fmt.Errorf("checkpoint is not held for message %d", id)
	}
	fmt.Printf("Released hold for %d\n", id)
	return nil
}
