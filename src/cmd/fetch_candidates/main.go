package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
	"github.com/kmehta2012/ladder-trading/src/utils"
)

type RunArgs struct {
	GoEnv     string
	OutFile   string
	WarmCache bool
}

type RunResult struct {
	Candidates []eventmodels.Candidate
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/fetch_candidates/main.go --out candidates.csv --warm-cache",
	Short: "Qualify the tradeable universe by 5-day average minute volume",
	Run: func(cmd *cobra.Command, args []string) {
		goEnv, err := cmd.Flags().GetString("go-env")
		if err != nil {
			log.Fatalf("error getting go-env: %v", err)
		}

		outFile, err := cmd.Flags().GetString("out")
		if err != nil {
			log.Fatalf("error getting out: %v", err)
		}

		warmCache, err := cmd.Flags().GetBool("warm-cache")
		if err != nil {
			log.Fatalf("error getting warm-cache: %v", err)
		}

		result, err := Run(RunArgs{
			GoEnv:     goEnv,
			OutFile:   outFile,
			WarmCache: warmCache,
		})

		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		fmt.Printf("%d candidates qualified\n", len(result.Candidates))
	},
}

func Run(args RunArgs) (RunResult, error) {
	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		log.Fatalf("missing PROJECTS_DIR environment variable")
	}

	if err := utils.InitEnvironmentVariables(projectsDir, args.GoEnv); err != nil {
		log.Fatalf("error loading environment variables: %v", err)
	}

	clientID := os.Getenv("DHAN_CLIENT_ID")
	if clientID == "" {
		log.Fatalf("missing DHAN_CLIENT_ID environment variable")
	}

	accessToken := os.Getenv("DHAN_ACCESS_TOKEN")
	if accessToken == "" {
		log.Fatalf("missing DHAN_ACCESS_TOKEN environment variable")
	}

	auth := eventservices.NewDhanAuth(clientID, accessToken)

	var master *eventservices.ScripMaster
	var err error
	if path := os.Getenv("SCRIP_MASTER_PATH"); path != "" {
		master, err = eventservices.LoadScripMasterFromFile(path)
	} else {
		master, err = eventservices.FetchScripMaster(eventservices.ScripMasterURL)
	}
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load scrip master: %w", err)
	}

	log.Infof("scrip master loaded, %d equity records", master.Len())

	bucket := utils.NewTokenBucket(10, 5)

	candidates, err := eventservices.BuildUniverse(context.Background(), auth, master, master.Symbols(), bucket)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to build universe: %w", err)
	}

	printCandidates(candidates)

	if args.OutFile != "" {
		if err := writeCandidatesCSV(args.OutFile, candidates); err != nil {
			return RunResult{}, err
		}

		log.Infof("wrote %s", args.OutFile)
	}

	if args.WarmCache {
		if err := warmCandidatesCache(candidates); err != nil {
			return RunResult{}, err
		}
	}

	return RunResult{Candidates: candidates}, nil
}

func printCandidates(candidates []eventmodels.Candidate) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Symbol", "Security ID", "Avg Minute Volume"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, candidate := range candidates {
		table.Append([]string{
			candidate.Symbol.String(),
			candidate.SecurityID,
			fmt.Sprintf("%.0f", candidate.AvgMinuteVolume),
		})
	}

	table.Render()
}

func writeCandidatesCSV(path string, candidates []eventmodels.Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&candidates, f); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	return nil
}

// warmCandidatesCache stores today's qualified universe so the engine skips
// the REST qualification pass at premarket.
func warmCandidatesCache(candidates []eventmodels.Candidate) error {
	clock, err := eventmodels.NewMarketClock()
	if err != nil {
		return err
	}

	cacheDir := os.Getenv("CANDIDATES_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "candidates-cache"
	}

	cache, err := eventservices.OpenCandidatesCache(cacheDir)
	if err != nil {
		return fmt.Errorf("failed to open candidates cache: %w", err)
	}
	defer cache.Close()

	now := time.Now()
	if err := cache.Put(clock.TradingDate(now), candidates, clock.NextMidnight(now)); err != nil {
		return fmt.Errorf("failed to warm cache: %w", err)
	}

	log.Infof("cache warmed for %s", clock.TradingDate(now))

	return nil
}

func main() {
	runCmd.Flags().String("go-env", "development", "The go environment to run the command in")
	runCmd.Flags().String("out", "", "Optional CSV output path")
	runCmd.Flags().Bool("warm-cache", false, "Store the result in the engine's candidates cache")

	runCmd.Execute()
}
