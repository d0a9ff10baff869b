package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"repoharness/pkg/models"
)

// ConfigWizard walks an operator through first-time harness setup.
type ConfigWizard struct {
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a new configuration wizard.
func NewConfigWizard() *ConfigWizard {
	return &ConfigWizard{
		currentStep: 1,
		totalSteps:  4,
	}
}

// Run executes the wizard and returns the assembled configuration.
func (w *ConfigWizard) Run() (*models.Config, error) {
	ShowHeader("Repo Harness - Configuration Setup")

	config := &models.Config{}

	steps := []func(*models.Config) error{
		w.configureWorkspaceStep,
		w.configureProviderStep,
		w.configureLangfuseStep,
		w.configureDatabaseStep,
	}
	for _, step := range steps {
		if err := step(config); err != nil {
			if err == terminal.InterruptErr {
				return nil, fmt.Errorf("configuration cancelled")
			}
			return nil, err
		}
		w.currentStep++
	}
	return config, nil
}

func (w *ConfigWizard) stepTitle(title string) {
	fmt.Printf("\nStep %d/%d: %s\n", w.currentStep, w.totalSteps, title)
}

func (w *ConfigWizard) configureWorkspaceStep(config *models.Config) error {
	w.stepTitle("Workspace")

	questions := []*survey.Question{
		{
			Name: "outputDir",
			Prompt: &survey.Input{
				Message: "Directory for cloned repositories:",
				Default: "repos",
			},
			Validate: survey.Required,
		},
		{
			Name: "manifestFile",
			Prompt: &survey.Input{
				Message: "Commits manifest file:",
				Default: "commits.json",
			},
			Validate: survey.Required,
		},
		{
			Name: "historyLimit",
			Prompt: &survey.Input{
				Message: "Commit history limit per repository:",
				Default: "100",
			},
			Validate: validatePositiveInt,
		},
	}

	answers := struct {
		OutputDir    string
		ManifestFile string
		HistoryLimit string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	config.OutputDir = answers.OutputDir
	config.ManifestFile = answers.ManifestFile
	config.HistoryLimit, _ = strconv.Atoi(answers.HistoryLimit)
	return nil
}

func (w *ConfigWizard) configureProviderStep(config *models.Config) error {
	w.stepTitle("Azure OpenAI provider")

	questions := []*survey.Question{
		{
			Name: "endpoint",
			Prompt: &survey.Input{
				Message: "Azure OpenAI endpoint:",
				Help:    "e.g. https://myresource.openai.azure.com",
			},
			Validate: validateEndpoint,
		},
		{
			Name: "deployment",
			Prompt: &survey.Input{
				Message: "Deployment (model) name:",
				Default: "gpt-4o",
			},
			Validate: survey.Required,
		},
		{
			Name: "apiVersion",
			Prompt: &survey.Input{
				Message: "API version:",
				Default: "2024-02-01",
			},
			Validate: survey.Required,
		},
	}

	answers := struct {
		Endpoint   string
		Deployment string
		APIVersion string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	var apiKey string
	if err := survey.AskOne(&survey.Password{
		Message: "Azure OpenAI API key:",
	}, &apiKey, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	config.Provider.Endpoint = strings.TrimRight(answers.Endpoint, "/")
	config.Provider.Deployment = answers.Deployment
	config.Provider.APIVersion = answers.APIVersion
	config.Provider.APIKey = apiKey
	return nil
}

func (w *ConfigWizard) configureLangfuseStep(config *models.Config) error {
	w.stepTitle("Langfuse observability (optional)")

	enable := false
	if err := survey.AskOne(&survey.Confirm{
		Message: "Wire Langfuse tracing into patched repositories?",
		Default: false,
	}, &enable); err != nil {
		return err
	}
	if !enable {
		return nil
	}

	questions := []*survey.Question{
		{
			Name: "host",
			Prompt: &survey.Input{
				Message: "Langfuse host:",
				Default: "https://cloud.langfuse.com",
			},
			Validate: survey.Required,
		},
		{
			Name: "publicKey",
			Prompt: &survey.Input{
				Message: "Langfuse public key:",
			},
			Validate: survey.Required,
		},
	}

	answers := struct {
		Host      string
		PublicKey string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	var secretKey string
	if err := survey.AskOne(&survey.Password{
		Message: "Langfuse secret key:",
	}, &secretKey, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	config.Provider.LangfuseHost = answers.Host
	config.Provider.LangfusePublic = answers.PublicKey
	config.Provider.LangfuseSecret = secretKey
	return nil
}

func (w *ConfigWizard) configureDatabaseStep(config *models.Config) error {
	w.stepTitle("PostgreSQL defaults")

	questions := []*survey.Question{
		{
			Name: "host",
			Prompt: &survey.Input{
				Message: "Host:",
				Default: "localhost",
			},
			Validate: survey.Required,
		},
		{
			Name: "port",
			Prompt: &survey.Input{
				Message: "Port:",
				Default: "5432",
			},
			Validate: validatePort,
		},
		{
			Name: "user",
			Prompt: &survey.Input{
				Message: "User:",
				Default: "harness",
			},
			Validate: survey.Required,
		},
		{
			Name: "dbName",
			Prompt: &survey.Input{
				Message: "Database name:",
				Default: "harness",
			},
			Validate: survey.Required,
		},
	}

	answers := struct {
		Host   string
		Port   string
		User   string
		DBName string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	var password string
	if err := survey.AskOne(&survey.Password{
		Message: "Password:",
	}, &password, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	config.Database.Host = answers.Host
	config.Database.Port, _ = strconv.Atoi(answers.Port)
	config.Database.User = answers.User
	config.Database.DBName = answers.DBName
	config.Database.Password = password
	config.Database.SSLMode = "disable"
	return nil
}

func validatePositiveInt(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected a number")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func validatePort(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected a port number")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port between 1 and 65535")
	}
	return nil
}

func validateEndpoint(val interface{}) error {
	s, ok := val.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return fmt.Errorf("endpoint must start with http:// or https://")
	}
	return nil
}
