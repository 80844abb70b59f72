// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal/clients"
	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/scheduler"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
)

// DefaultOutput file the wizard writes.
const DefaultOutput = "tradewars.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard.
type Answers struct {
	PriceSource   string
	RoundSchedule string
	TimeZone      string
	Storage       string
	StorageDSN    string
	APIURL        string
	APIKey        string
	Model         string
	HTTPAddr      string
	// Roster lines in "name:strategy" form, comma separated.
	Roster string
}

func defaultAnswers() Answers {
	return Answers{
		PriceSource:   config.SourceCoinGecko,
		RoundSchedule: scheduler.DefaultRoundSpec,
		TimeZone:      "UTC",
		Storage:       kv.BackendFile,
		APIURL:        clients.DefaultAPIURL,
		Model:         clients.DefaultModel,
		HTTPAddr:      ":8080",
		Roster:        "Aurelian:conservative, Pumara:aggressive",
	}
}

func clearScreen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADEWARS CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the yaml to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultOutput
	}
	a := defaultAnswers()
	var confirm bool

	clearScreen("STEP 1: PRICES")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where do the bots read BTC and ETH prices from?\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price source").
				Options(
					huh.NewOption("CoinGecko", config.SourceCoinGecko),
					huh.NewOption("Binance", config.SourceBinance),
					huh.NewOption("Bybit", config.SourceBybit),
					huh.NewOption("Hyperliquid", config.SourceHyperliquid),
				).
				Value(&a.PriceSource),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 2: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Round schedule").
				Description("Six-field cron spec with seconds or a descriptor (e.g. @every 1m)").
				Value(&a.RoundSchedule).
				Validate(validateSchedule),
			huh.NewInput().
				Title("Competition time zone").
				Description("IANA name; the day resets at its midnight").
				Value(&a.TimeZone).
				Validate(validateTimeZone),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 3: STORAGE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Storage backend").
				Options(
					huh.NewOption("JSON files", kv.BackendFile),
					huh.NewOption("SQLite", kv.BackendSQLite),
					huh.NewOption("Redis", kv.BackendRedis),
					huh.NewOption("Memory (lost on restart)", kv.BackendMemory),
				).
				Value(&a.Storage),
			huh.NewInput().
				Title("Storage location").
				Description("Directory, database file or redis:// URL; empty for the default").
				Value(&a.StorageDSN),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 4: LLM")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API URL").
				Value(&a.APIURL),
			huh.NewInput().
				Title("LLM API Key").
				Description("Leave empty to use OPENAI_API_KEY").
				Value(&a.APIKey).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().
				Title("Model Name").
				Value(&a.Model),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 5: ARENA")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bots").
				Description("Comma separated name:strategy (conservative or aggressive)").
				Value(&a.Roster).
				Validate(func(s string) error {
					_, err := parseRoster(s)
					return err
				}),
			huh.NewInput().
				Title("HTTP address").
				Value(&a.HTTPAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Prices: %s\nRounds: %s\nTime zone: %s\nStorage: %s\nModel: %s\nBots: %s\n",
		a.PriceSource, a.RoundSchedule, a.TimeZone, a.Storage, a.Model, a.Roster,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := WriteConfig(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting arena...", path)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

// WriteConfig renders the answers as yaml and writes them to path.
func WriteConfig(path string, a Answers) error {
	tmp, err := buildConfig(a)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func buildConfig(a Answers) (config.ConfigTmp, error) {
	roster, err := parseRoster(a.Roster)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	tmp := config.ConfigTmp{
		PriceSource:    a.PriceSource,
		RoundSchedule:  a.RoundSchedule,
		TimeZone:       a.TimeZone,
		StorageBackend: a.Storage,
		StorageDSN:     a.StorageDSN,
		LLMAPIURL:      a.APIURL,
		LLMAPIKey:      a.APIKey,
		Model:          a.Model,
		HTTPAddr:       a.HTTPAddr,
	}
	for _, b := range roster {
		tmp.Roster = append(tmp.Roster, config.BotTmp{Name: b.Name, Strategy: string(b.Strategy), BalanceStr: b.Balance.String()})
	}
	return tmp, nil
}

func parseRoster(s string) ([]domain.Bot, error) {
	var bots []domain.Bot
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, strategy, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid bot %q: must be name:strategy", entry)
		}
		bots = append(bots, domain.NewBot(strings.TrimSpace(name), domain.Strategy(strings.ToLower(strings.TrimSpace(strategy))), domain.DefaultStartingBalance))
	}
	if len(bots) == 0 {
		return nil, fmt.Errorf("at least one bot is required")
	}
	if err := domain.ValidateRoster(bots); err != nil {
		return nil, err
	}
	return bots, nil
}

func validateSchedule(s string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(s); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

func validateTimeZone(s string) error {
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown time zone")
	}
	return nil
}
