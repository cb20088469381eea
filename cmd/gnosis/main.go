// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/gnosis"
	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/reindex"
	"github.com/poiesic/gnosis/resolve"
	"github.com/poiesic/gnosis/search"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "gnosis",
		Usage:  "Knowledge extraction and semantic indexing for documents",
		Flags:  globalFlags(),
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a document file and process it through the pipeline",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Document title (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "Document language code",
						Value: "en",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for processing to finish and report the job outcome",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search indexed segments and entities",
				ArgsUsage: "<query...>",
				Action:    searchCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Restrict results to a kind (segment, entity)",
					},
					&cli.StringSliceFlag{
						Name:  "entity-type",
						Usage: "Restrict results to entities of a type",
					},
					&cli.Uint64Flag{
						Name:  "document",
						Usage: "Restrict segment results to one document id",
					},
					&cli.BoolFlag{
						Name:  "expand",
						Usage: "Attach directly related entities to entity results",
					},
				),
			},
			{
				Name:      "graph",
				Usage:     "Show the subgraph around an entity",
				ArgsUsage: "<entity name>",
				Action:    graphCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:  "type",
						Usage: "Entity type of the starting entity",
						Value: string(core.EntityTypeConcept),
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Maximum traversal depth",
						Value: 2,
					},
					&cli.StringSliceFlag{
						Name:  "relation-type",
						Usage: "Restrict traversal to relation types",
					},
					&cli.BoolFlag{
						Name:  "undirected",
						Usage: "Traverse edges in both directions",
					},
				),
			},
			{
				Name:      "document",
				Usage:     "Show a stored document and its segments",
				ArgsUsage: "<source id | document id>",
				Action:    documentCommand,
				Flags:     databaseFlags(),
			},
			{
				Name:      "job",
				Usage:     "Show the state of a processing job",
				ArgsUsage: "<job id>",
				Action:    jobCommand,
				Flags:     databaseFlags(),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all stored segments and entities",
				Action: reindexCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Set logging level (debug, info, warn, error)",
			Value:   "info",
		},
	}
}

func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the database directory",
			Value:   "./gnosis_db",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for embedding and extraction",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Extraction model name",
			Value: "qwen2.5:3b",
		},
		&cli.Float64Flag{
			Name:  "min-confidence",
			Usage: "Minimum confidence for extracted entities and relations",
			Value: 0.3,
		},
		&cli.IntFlag{
			Name:  "index-dimension",
			Usage: "Embedding dimension for an empty database",
			Value: gnosis.DefaultIndexDimension,
		},
	}
}

func openDatabase(c *cli.Context) (*gnosis.Database, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorModel(c.String("extractor-model")),
		ai.WithMinConfidence(c.Float64("min-confidence")),
	)

	db, err := gnosis.NewDatabase(c.String("db"),
		gnosis.WithAIConfig(aiConfig),
		gnosis.WithIndexDimension(c.Int("index-dimension")))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	title := c.String("title")
	if title == "" {
		title = filepath.Base(path)
	}

	ctx := context.Background()
	doc, jobID, err := db.Ingest(ctx, &core.Document{
		SourceId:    path,
		Title:       title,
		Text:        string(text),
		ContentType: contentTypeFor(path),
		Language:    c.String("language"),
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Ingested %s as document %d (version %d), job %s\n", path, doc.Id, doc.Version, jobID)

	if !c.Bool("wait") {
		return nil
	}

	job, err := waitForJob(ctx, db, jobID)
	if err != nil {
		return err
	}
	printJob(job)
	if job.State != core.JobStateDone {
		return fmt.Errorf("processing finished with state %s", job.State)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	filters := &search.Filters{
		DocumentId:  core.ID(c.Uint64("document")),
		ExpandGraph: c.Bool("expand"),
	}
	for _, kind := range c.StringSlice("kind") {
		filters.Kinds = append(filters.Kinds, index.Kind(kind))
	}
	for _, label := range c.StringSlice("entity-type") {
		typ, ok := core.ParseEntityType(label)
		if !ok {
			return fmt.Errorf("unknown entity type %q", label)
		}
		filters.EntityTypes = append(filters.EntityTypes, typ)
	}

	results, err := searcher.Search(context.Background(), query, c.Int("k"), filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: [%s %d] %q [%0.3f]\n", i+1, hit.Kind, hit.Id, hit.Snippet, hit.Score)
		for _, related := range hit.Related {
			fmt.Printf("   related: %s (%s, %d)\n", related.Name, related.Type, related.Id)
		}
	}
	return nil
}

func graphCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("an entity name is required")
	}
	name := strings.Join(c.Args().Slice(), " ")

	typ, ok := core.ParseEntityType(c.String("type"))
	if !ok {
		return fmt.Errorf("unknown entity type %q", c.String("type"))
	}

	var relationTypes []core.RelationType
	for _, label := range c.StringSlice("relation-type") {
		rt, ok := core.ParseRelationType(label)
		if !ok {
			return fmt.Errorf("unknown relation type %q", label)
		}
		relationTypes = append(relationTypes, rt)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	entity, err := db.EntityRepository().GetByName(ctx, resolve.NormalizeName(name), typ)
	if err != nil {
		return fmt.Errorf("no %s entity named %q", typ, name)
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	sub, err := searcher.GraphQuery(ctx, entity.Id, c.Int("depth"), relationTypes, c.Bool("undirected"))
	if err != nil {
		return fmt.Errorf("traversal failed: %w", err)
	}

	fmt.Printf("Subgraph around %q: %d nodes, %d edges\n", entity.Name, len(sub.Nodes), len(sub.Edges))
	names := make(map[core.ID]string, len(sub.Nodes))
	for _, node := range sub.Nodes {
		names[node.Id] = node.Name
		fmt.Printf("  node: %s (%s, %d)\n", node.Name, node.Type, node.Id)
	}
	for _, edge := range sub.Edges {
		fmt.Printf("  edge: %s -[%s]-> %s\n", names[edge.SourceId], edge.Type, names[edge.TargetId])
	}
	return nil
}

func documentCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document argument")
	}
	arg := c.Args().First()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	// Accept either a numeric document id or a source identifier.
	var doc *core.Document
	if id, parseErr := strconv.ParseUint(arg, 10, 64); parseErr == nil {
		doc, err = db.DocumentRepository().GetDocument(ctx, core.ID(id))
	} else {
		doc, err = db.DocumentRepository().GetDocumentBySource(ctx, arg)
	}
	if err != nil {
		return fmt.Errorf("document %q not found", arg)
	}

	segments, err := db.DocumentRepository().GetSegmentsByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}

	fmt.Printf("Document %d: %q (source %s, version %d)\n", doc.Id, doc.Title, doc.SourceId, doc.Version)
	if doc.SupersedesId != 0 {
		fmt.Printf("Supersedes: %d\n", doc.SupersedesId)
	}
	fmt.Printf("Segments: %d\n", len(segments))
	for _, seg := range segments {
		fmt.Printf("  %d [%s] %s\n", seg.Position, seg.Kind, seg.Content)
	}
	return nil
}

func jobCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job id argument")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := db.JobRepository().GetJob(context.Background(), c.Args().First())
	if err != nil {
		return fmt.Errorf("job %q not found", c.Args().First())
	}
	printJob(job)
	return nil
}

func reindexCommand(c *cli.Context) error {
	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := db.NewReindexer(config, os.Stderr).Run(context.Background()); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func contentTypeFor(path string) core.ContentType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return core.ContentTypePDF
	case ".html", ".htm":
		return core.ContentTypeHTML
	case ".json":
		return core.ContentTypeJSON
	case ".xml":
		return core.ContentTypeXML
	default:
		return core.ContentTypeText
	}
}

func waitForJob(ctx context.Context, db *gnosis.Database, jobID string) (*core.Job, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := db.JobRepository().GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.State == core.JobStateDone || job.State == core.JobStateFailedPartial {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(job *core.Job) {
	fmt.Printf("Job %s (document %d): %s\n", job.Id, job.DocumentId, job.State)
	for _, stage := range core.Stages {
		fmt.Printf("  %-11s %s\n", stage, job.StageStatus(stage))
	}
	for _, msg := range job.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
