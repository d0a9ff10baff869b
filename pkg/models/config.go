package models

type Config struct {
	OutputDir    string         `yaml:"output_dir"`
	ManifestFile string         `yaml:"manifest_file"`
	HistoryLimit int            `yaml:"history_limit"`
	Install      InstallConfig  `yaml:"install"`
	Provider     ProviderConfig `yaml:"provider"`
	Database     DatabaseConfig `yaml:"database"`
	Log          LogConfig      `yaml:"log"`
}

// InstallConfig bounds dependency installation and build verification.
type InstallConfig struct {
	TimeoutMinutes int  `yaml:"timeout_minutes"`
	PythonOnly     bool `yaml:"python_only"`
	NodeOnly       bool `yaml:"node_only"`
}

// ProviderConfig is the standardized LLM provider every repository is
// switched to, plus optional Langfuse observability keys.
type ProviderConfig struct {
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
	Deployment     string `yaml:"deployment" json:"deployment"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	APIVersion     string `yaml:"api_version" json:"api_version"`
	LangfuseHost   string `yaml:"langfuse_host,omitempty" json:"langfuse_host,omitempty"`
	LangfusePublic string `yaml:"langfuse_public_key,omitempty" json:"langfuse_public_key,omitempty"`
	LangfuseSecret string `yaml:"langfuse_secret_key,omitempty" json:"langfuse_secret_key,omitempty"`
}

// DatabaseConfig holds the standardized PostgreSQL connection defaults used
// both for provider switching and for per-repo container provisioning.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or text
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DbContainerSpec describes one repository's ephemeral Postgres container.
type DbContainerSpec struct {
	RepoName      string `json:"repo_name" yaml:"repo_name"`
	ContainerName string `json:"container_name" yaml:"container_name"`
	Port          int    `json:"port" yaml:"port"`
	DBName        string `json:"db_name" yaml:"db_name"`
	User          string `json:"user" yaml:"user"`
	Password      string `json:"password" yaml:"password"`
}
