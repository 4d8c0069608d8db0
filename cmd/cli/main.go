package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ritual/internal/adapters"
	"ritual/internal/config"
	"ritual/internal/core/domain"
	"ritual/internal/core/ports"
	"ritual/internal/core/services"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// staticCredSource hands back the credentials embedded in the decoded
// TransferPlan. A real deployment re-invokes the external command parser
// on ExpiredToken (§4.5); this CLI has no such channel to call back into,
// so renewal degrades to re-presenting the same credentials.
type staticCredSource struct {
	creds ports.Credentials
}

func (s staticCredSource) Credentials(ctx context.Context) (ports.Credentials, error) {
	return s.creds, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env file not found: %v", err)
	}

	if err := os.MkdirAll(config.RootPath, config.DirPermission); err != nil {
		log.Fatalf("failed to create work root: %v", err)
	}
	workRoot, err := os.OpenRoot(config.RootPath)
	if err != nil {
		log.Fatalf("failed to open work root: %v", err)
	}
	defer workRoot.Close()

	fileLogger, cleanupLog, err := newFileLogger(workRoot)
	if err != nil {
		log.Fatalf("failed to set up log file: %v", err)
	}
	defer cleanupLog()

	events := make(chan ports.Event)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeEvents(events, nil)
	}()

	logger := adapters.NewMultiLogger(fileLogger, adapters.NewEventLogger("transfer", events))

	code := run(logger, events)

	close(events)
	wg.Wait()
	os.Exit(code)
}

// run decodes the transfer plan from argv/stdin, dispatches it through the
// orchestrator, and renders the outcome table. It returns the process exit
// code so main can still drain the event consumer goroutine afterward.
func run(logger ports.Logger, events chan<- ports.Event) int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ritual <command-text> < plan.json")
		return 2
	}
	commandText := os.Args[1]

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read plan from stdin: %v\n", err)
		return 2
	}

	plan, err := services.NewPlanDecoder().Decode(commandText, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode transfer plan: %v\n", err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, resolver, err := buildClient(ctx, plan, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up object storage client: %v\n", err)
		return 1
	}
	defer client.Shutdown()

	ports.SendEvent(events, ports.StartEvent{Operation: string(plan.Verb)})

	orch := services.NewOrchestrator(client, logger)
	results, ok, err := orch.Execute(ctx, plan, resolver)
	if err != nil {
		ports.SendEvent(events, ports.ErrorEvent{Operation: string(plan.Verb), Err: err})
		return 1
	}
	ports.SendEvent(events, ports.FinishEvent{Operation: string(plan.Verb)})

	printResults(plan, results)

	if !ok {
		return 1
	}
	return 0
}

func buildClient(ctx context.Context, plan *domain.TransferPlan, logger ports.Logger) (ports.ObjectStorageClient, ports.LocalPathResolver, error) {
	if plan.Stage.Kind == domain.StageLocalFS {
		fsAdapter, err := adapters.NewLocalFSAdapter(plan.Stage.Location)
		if err != nil {
			return nil, nil, err
		}
		return fsAdapter, fsAdapter, nil
	}

	credSource := staticCredSource{creds: ports.Credentials{
		AWSID:    plan.Stage.Credentials["AWS_ID"],
		AWSKey:   plan.Stage.Credentials["AWS_KEY"],
		AWSToken: plan.Stage.Credentials["AWS_TOKEN"],
	}}
	s3Adapter, err := adapters.NewS3Adapter(plan.Stage, credSource, logger)
	if err != nil {
		return nil, nil, err
	}
	return s3Adapter, nil, nil
}

func printResults(plan *domain.TransferPlan, results []*domain.FileMetadata) {
	view := services.NewStatusView()
	rows := view.Rows(plan.Verb, results, plan.Flags.ShowEncryption, plan.Flags.Sort)

	var header []string
	if plan.Verb == domain.VerbUpload {
		header = services.UploadColumns(plan.Flags.ShowEncryption)
	} else {
		header = services.DownloadColumns(plan.Flags.ShowEncryption)
	}
	fmt.Println(headerLine(header))

	for _, row := range rows {
		fmt.Println(colorizeRow(row))
	}
}

func headerLine(cols []string) string {
	line := ""
	for i, c := range cols {
		if i > 0 {
			line += "\t"
		}
		line += c
	}
	return line
}

func colorizeRow(row services.StatusRow) string {
	status := row.Columns[len(row.Columns)-2]
	paint := color.New(color.FgWhite).SprintFunc()
	switch status {
	case "UPLOADED", "DOWNLOADED", "SKIPPED":
		paint = color.New(color.FgGreen).SprintFunc()
	case "ERROR", "COLLISION", "UNSUPPORTED":
		paint = color.New(color.FgRed).SprintFunc()
	case "NONEXIST", "DIRECTORY":
		paint = color.New(color.FgYellow).SprintFunc()
	}

	line := ""
	for i, c := range row.Columns {
		if i > 0 {
			line += "\t"
		}
		line += c
	}
	return paint(line)
}
