package config

const (
	defaultConfigPath         = "~/.config/metaledger/config.toml"
	defaultDataDir            = "~/.local/share/metaledger"
	defaultLogDir             = "~/.local/share/metaledger/logs"
	defaultStoreDriver        = DriverSQLite
	defaultSourceSystem       = "JKO"
	defaultSourceFormat       = "csv"
	defaultSourceEncoding     = "utf-8"
	defaultSourceValidation   = "~/.config/metaledger/schemas/source_validate_schema.json"
	defaultTargetMapping      = "~/.config/metaledger/schemas/source_target_mapping.json"
	defaultTargetValidation   = "~/.config/metaledger/schemas/target_validation_schema.json"
	defaultKeySeparator       = "_"
	defaultIndexTimeout       = 6
	defaultIndexMaxPasses     = 10
	defaultWorkflowWorkers    = 4
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSourceKeyIDField   = "LearningResourceIdentifier"
	defaultSourceKeySysField  = "SOURCESYSTEM"
	defaultTargetKeyCodeField = "Course.CourseCode"
	defaultTargetKeyProvField = "Course.CourseProviderName"
)

// Supported ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Source: Source{
			SystemName: defaultSourceSystem,
			Format:     defaultSourceFormat,
			Encoding:   defaultSourceEncoding,
		},
		Schemas: Schemas{
			SourceValidation: defaultSourceValidation,
			TargetMapping:    defaultTargetMapping,
			TargetValidation: defaultTargetValidation,
		},
		Keys: Keys{
			SourceFields: []string{defaultSourceKeyIDField, defaultSourceKeySysField},
			TargetFields: []string{defaultTargetKeyCodeField, defaultTargetKeyProvField},
			Separator:    defaultKeySeparator,
		},
		Index: Index{
			TimeoutSeconds: defaultIndexTimeout,
			MaxPasses:      defaultIndexMaxPasses,
		},
		Workflow: Workflow{
			Workers: defaultWorkflowWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
