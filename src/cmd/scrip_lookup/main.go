package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

type RunArgs struct {
	Symbol     string
	SecurityID string
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/scrip_lookup/main.go --symbol RELIANCE",
	Short: "Resolve a trading symbol or security id against the broker scrip master",
	Run: func(cmd *cobra.Command, args []string) {
		symbol, err := cmd.Flags().GetString("symbol")
		if err != nil {
			log.Fatalf("error getting symbol: %v", err)
		}

		securityID, err := cmd.Flags().GetString("security-id")
		if err != nil {
			log.Fatalf("error getting security-id: %v", err)
		}

		if symbol == "" && securityID == "" {
			log.Fatal("one of --symbol or --security-id is required")
		}

		if err := Run(RunArgs{Symbol: symbol, SecurityID: securityID}); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func Run(args RunArgs) error {
	var master *eventservices.ScripMaster
	var err error
	if path := os.Getenv("SCRIP_MASTER_PATH"); path != "" {
		master, err = eventservices.LoadScripMasterFromFile(path)
	} else {
		master, err = eventservices.FetchScripMaster(eventservices.ScripMasterURL)
	}
	if err != nil {
		return fmt.Errorf("failed to load scrip master: %w", err)
	}

	if args.Symbol != "" {
		securityID, err := master.SecurityIDForSymbol(eventmodels.StockSymbol(args.Symbol))
		if err != nil {
			return err
		}

		fmt.Printf("%s -> security id %s\n", args.Symbol, securityID)
	}

	if args.SecurityID != "" {
		symbol, found := master.SymbolForSecurityID(args.SecurityID)
		if !found {
			return fmt.Errorf("security id %s not found", args.SecurityID)
		}

		fmt.Printf("%s -> symbol %s\n", args.SecurityID, symbol)
	}

	return nil
}

func main() {
	runCmd.Flags().String("symbol", "", "Trading symbol to resolve")
	runCmd.Flags().String("security-id", "", "Broker security id to resolve")

	runCmd.Execute()
}
