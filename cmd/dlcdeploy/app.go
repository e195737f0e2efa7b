package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/catalog"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/shim"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/usecase"
)

// app holds the wired collaborators for one CLI invocation.
type app struct {
	settings    infra.Settings
	logger      *zap.Logger
	fs          domain.FileSystemManager
	catalog     *catalog.Catalog
	classifier  domain.BinaryClassifier
	families    *shim.Registry
	deployer    *usecase.DeployerImpl
	uninstaller *usecase.UninstallerImpl
}

func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = infra.DefaultSettingsPath()
	}
	fs := infra.NewFileSystemManager()
	settings, err := infra.LoadSettings(fs.ExpandHome(path))
	if err != nil {
		return nil, err
	}

	logger, err := createLogger(settings, verbose, fs)
	if err != nil {
		return nil, err
	}

	// A missing payload means the binary was packaged wrong; nothing can run.
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("payload catalog is damaged: %w", err)
	}

	locks := infra.NewLockDetector(settings.ScanProcesses, logger)
	families := shim.NewRegistry(shim.Deps{FS: fs, Catalog: cat, Locks: locks, Logger: logger})
	loaderConfig := infra.NewLoaderConfigWriter(fs, logger)
	classifier := infra.NewPEClassifier()

	return &app{
		settings:    settings,
		logger:      logger,
		fs:          fs,
		catalog:     cat,
		classifier:  classifier,
		families:    families,
		deployer:    usecase.NewDeployer(classifier, cat, locks, loaderConfig, families, fs, logger),
		uninstaller: usecase.NewUninstaller(cat, locks, loaderConfig, families, fs, logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func createLogger(settings infra.Settings, verbose bool, fs domain.FileSystemManager) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
	} else {
		level, err := settings.Level()
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	config.OutputPaths = []string{"stderr"}
	if settings.LogFile != "" {
		config.OutputPaths = append(config.OutputPaths, fs.ExpandHome(settings.LogFile))
	}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
