package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "BUDGETGRID_"

type Application struct {
	Port       int        `koanf:"port"`
	Frontend   Frontend   `koanf:"frontend"`
	Database   Database   `koanf:"db"`
	Upstream   Upstream   `koanf:"upstream"`
	Sync       Sync       `koanf:"sync"`
	Grid       Grid       `koanf:"grid"`
	Validation Validation `koanf:"validation"`
	Google     Google     `koanf:"google"`
}

type Frontend struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// Upstream points the sheet at a remote budget backend. An empty BaseUrl makes the
// sheet use the in-process budget store.
type Upstream struct {
	BaseUrl        string `koanf:"baseurl"`
	TimeoutSeconds int    `koanf:"timeoutseconds"`
}

func (u Upstream) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

type Sync struct {
	// Mode is "bulk" or "per-record".
	Mode string `koanf:"mode"`
}

type Grid struct {
	SheetName    string                 `koanf:"sheetname"`
	BlankRows    int                    `koanf:"blankrows"`
	BudgetMin    float64                `koanf:"budgetmin"`
	BudgetMax    float64                `koanf:"budgetmax"`
	HoursMin     float64                `koanf:"hoursmin"`
	HoursMax     float64                `koanf:"hoursmax"`
	StatusStyles map[string]StatusStyle `koanf:"statusstyles"`
}

type StatusStyle struct {
	Background string `koanf:"background"`
	Color      string `koanf:"color"`
}

type Validation struct {
	RequirePositiveBudget bool `koanf:"requirepositivebudget"`
	StrictReferences      bool `koanf:"strictreferences"`
}

type Google struct {
	CredentialsFile string `koanf:"credentialsfile"`
}

func Defaults() Application {
	return Application{
		Port: 8181,
		Frontend: Frontend{
			Enabled: true,
			Dir:     "frontend",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "budgetgrid",
			Pass:   "",
			Name:   "budgetgrid",
			Schema: "budgetgrid",
		},
		Upstream: Upstream{
			TimeoutSeconds: 30,
		},
		Sync: Sync{
			Mode: "bulk",
		},
		Grid: Grid{
			SheetName: "Budget",
			BlankRows: 500,
			BudgetMin: 0,
			BudgetMax: 10_000_000,
			HoursMin:  0,
			HoursMax:  10_000,
			StatusStyles: map[string]StatusStyle{
				"Planned":     {Background: "#fff2cc", Color: "#7f6000"},
				"Approved":    {Background: "#d9ead3", Color: "#274e13"},
				"Over Budget": {Background: "#f4cccc", Color: "#990000"},
			},
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
