package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/composer"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/memory"
	"github.com/spigell/jobmatch/internal/pipeline"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/report"
	"github.com/spigell/jobmatch/internal/requirements"
)

const (
	PromptShowReport     = "Show report"
	PromptShowLetters    = "Show report with cover letters"
	PromptDumpRecords    = "Dump records to file"
	PromptAppendToMemory = "Append records to memory file"
	PromptExit           = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowReport, PromptShowLetters, PromptDumpRecords, PromptAppendToMemory, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score postings against the profile and draft cover letters",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("do-not-exclude-recorded", "f", false, "do not exclude postings already recorded in the memory file")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask what to do with results: print the report and append records to the memory file")
	runCmd.Flags().StringP("postings", "p", "", "file with postings to process")
	runCmd.Flags().Float64("threshold", 0, "minimum fit score to apply, within [0, 1]")
	runCmd.Flags().IntP("workers", "w", 0, "number of postings processed concurrently")
	runCmd.Flags().String("posting-id", "", "process only the posting with this id")

	viper.BindPFlag("postings-file", runCmd.Flags().Lookup("postings"))
	viper.BindPFlag("threshold", runCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the jobmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	candidate, err := profile.New(config.Profile)
	if err != nil {
		logger.Fatal("building candidate profile", zap.Error(err), zap.String("hint", "set profile.skills in the configuration file"))
	}

	postings, err := posting.LoadFile(config.PostingsFile)
	if err != nil {
		logger.Fatal("loading postings",
			zap.Error(err),
			zap.String("hint", "set JOBMATCH_POSTINGS_FILE, --postings flag or the 'postings-file' key in the configuration file"),
		)
	}

	logger.Info("got postings", zap.Int("count", postings.Len()))

	if id := cmd.Flag("posting-id").Value.String(); id != "" {
		postings, err = selectPosting(postings, id)
		if err != nil {
			logger.Fatal("selecting posting", zap.Error(err))
		}
	}

	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	filters := prepareFilters(cmd, config, logger)

	postings, err = filters.RunFilters(ctx, postings)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	orchestrator, err := preparePipeline(config, logger)
	if err != nil {
		logger.Fatal("preparing pipeline", zap.Error(err))
	}

	result := orchestrator.Run(ctx, candidate, postings)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		for _, action := range []string{PromptShowReport, PromptAppendToMemory} {
			if err := handleAction(cmd, action, logger, config, result); err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(cmd, action, logger, config, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(cmd *cobra.Command, action string, logger *zap.Logger, config *Config, result *pipeline.Result) error {
	switch action {
	case PromptShowReport:
		fmt.Fprint(cmd.OutOrStdout(), report.Render(result, report.Options{}))
		return nil
	case PromptShowLetters:
		fmt.Fprint(cmd.OutOrStdout(), report.Render(result, report.Options{WithArtifacts: true}))
		return nil
	case PromptDumpRecords:
		filename, err := result.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump records to file: %w", err)
		}
		logger.Info("dumping records to file", zap.String("filename", filename))
		return nil
	case PromptAppendToMemory:
		if strings.TrimSpace(config.MemoryFile) == "" {
			logger.Warn("memory file is not configured; records are not saved", zap.String("hint", "set the 'memory-file' key in the configuration file"))
			return nil
		}
		added, err := memory.AppendResult(config.MemoryFile, result, time.Now())
		if err != nil {
			return err
		}
		logger.Info("records appended to memory file", zap.String("path", config.MemoryFile), zap.Int("count", added))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "requested from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func preparePipeline(config *Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	var tmpl, signature string
	if config.Letter != nil {
		tmpl = config.Letter.Template
		signature = config.Letter.Signature
	}

	return pipeline.New(&pipeline.Config{
		Threshold:    config.Threshold,
		Workers:      config.Workers,
		MaxLogLength: config.MaxLogLength,
	}, &pipeline.Deps{
		Extractor: requirements.NewVocabularyExtractor(config.Vocabulary...),
		Composer:  composer.NewTemplateComposer(tmpl, signature),
		Logger:    logger,
	})
}

func selectPosting(postings *posting.Postings, id string) (*posting.Postings, error) {
	found := postings.FindByID(strings.TrimSpace(id))
	if found == nil {
		return nil, fmt.Errorf("posting %q not found", id)
	}
	return &posting.Postings{Items: []*posting.Posting{found}}, nil
}

func prepareFilters(cmd *cobra.Command, config *Config, logger *zap.Logger) *filtering.Filtering {
	ignore := false
	if cmd != nil {
		flag := cmd.Flag("do-not-exclude-recorded")
		if flag != nil && strings.EqualFold(flag.Value.String(), "true") {
			ignore = true
		}
	}

	var companies []string
	if config.Exclude != nil {
		companies = config.Exclude.Companies
	}

	steps := []filtering.Filter{
		filtering.NewExcludedCompanies(companies, logger),
		filtering.NewMemory(&filtering.MemoryFilterConfig{Path: config.MemoryFile, Ignore: ignore}, logger),
	}

	return filtering.New(steps, logger)
}
