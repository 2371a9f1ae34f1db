package app

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-its/internal/config"
	"github.com/deploymenttheory/go-its/internal/crypto"
	"github.com/deploymenttheory/go-its/internal/flash"
	"github.com/deploymenttheory/go-its/internal/flashfs"
	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/its"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Runtime is an initialised storage service with the stores behind it
type Runtime struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Service  *its.Service

	ITS *flashfs.FS
	PS  *flashfs.FS

	closers []func() error
}

// Open builds the flash driver, stores and service described by cfg and
// initialises the service
func Open(cfg *config.Config, log logrus.FieldLogger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Registry: prometheus.NewRegistry()}
	rt.Metrics = metrics.New(rt.Registry)

	drv, err := rt.openDriver(log)
	if err != nil {
		return nil, err
	}

	// RAM contents do not survive the process, a layout is always created
	volatile := cfg.Flash.Kind == "ram"
	buffered := cfg.Flash.Kind == "nand"

	itsStore := its.StoreConfig{
		Name:            "its",
		AreaOffset:      cfg.ITS.AreaOffset,
		AreaSize:        cfg.ITS.AreaSize,
		SectorsPerBlock: cfg.ITS.SectorsPerBlock,
		ProgramUnit:     cfg.Flash.ProgramUnit,
		MaxFileSize:     cfg.ITS.MaxAssetSize,
		MaxNumFiles:     cfg.ITS.NumAssets,
		Buffered:        buffered,
		CreateLayout:    cfg.ITS.CreateLayout || volatile,
	}
	if rt.ITS, err = its.OpenStore(drv, itsStore, log, rt.Metrics); err != nil {
		rt.Close()
		return nil, err
	}

	opts := its.Options{
		BufferSize: cfg.ITS.BufferSize,
		PSClientID: cfg.PS.ClientID,
		Logger:     log,
		Metrics:    rt.Metrics,
	}

	if cfg.PS.Enabled {
		psStore := its.StoreConfig{
			Name:            "ps",
			AreaOffset:      cfg.PS.AreaOffset,
			AreaSize:        cfg.PS.AreaSize,
			SectorsPerBlock: cfg.PS.SectorsPerBlock,
			ProgramUnit:     cfg.Flash.ProgramUnit,
			MaxFileSize:     cfg.PS.MaxObjectSize,
			MaxNumFiles:     cfg.PS.MaxNumObjects,
			Buffered:        buffered,
			CreateLayout:    cfg.PS.CreateLayout || volatile,
		}
		if rt.PS, err = its.OpenStore(drv, psStore, log, rt.Metrics); err != nil {
			rt.Close()
			return nil, err
		}
		opts.PS = &its.Store{FS: rt.PS, CreateLayout: psStore.CreateLayout}
	}

	if cfg.Crypto.Enabled {
		layer, err := openCrypto(cfg.Crypto, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts.Crypto = layer
	}

	rt.Service, err = its.NewService(its.Store{FS: rt.ITS, CreateLayout: itsStore.CreateLayout}, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.Service.Init(); err != nil {
		rt.Close()
		return nil, NewError(ErrCodeStorage, "failed to initialise storage", err)
	}
	return rt, nil
}

func (rt *Runtime) openDriver(log logrus.FieldLogger) (interfaces.FlashDriver, error) {
	fc := rt.Config.Flash
	info := types.FlashInfo{
		SectorSize:  fc.SectorSize,
		ProgramUnit: fc.ProgramUnit,
		ErasedValue: fc.ErasedValue,
		Size:        fc.Size,
	}

	switch fc.Kind {
	case "ram":
		drv, err := flash.NewRAMDriver(info)
		if err != nil {
			return nil, NewError(ErrCodeFlashAccess, "failed to create RAM flash", err)
		}
		return drv, nil
	case "file", "nand":
		drv, err := flash.OpenFileDriver(fc.Image, info)
		if err != nil {
			return nil, NewError(ErrCodeFlashAccess, "failed to open flash image", err)
		}
		rt.closers = append(rt.closers, drv.Close)
		log.WithField("image", fc.Image).Debug("opened flash image")
		return drv, nil
	default:
		return nil, NewError(ErrCodeConfig, fmt.Sprintf("unknown flash kind %q", fc.Kind), nil)
	}
}

func openCrypto(cc config.CryptoConfig, log logrus.FieldLogger) (*crypto.Layer, error) {
	var huk []byte
	var err error
	if cc.HUKHex != "" {
		huk, err = crypto.ParseRootKey(cc.HUKHex)
	} else {
		huk, err = crypto.ReadRootKey(cc.HUKFile)
	}
	if err != nil {
		return nil, NewError(ErrCodeConfig, "failed to load root key", err)
	}
	defer clear(huk)

	hal, err := crypto.NewSoftwareHAL(huk)
	if err != nil {
		return nil, NewError(ErrCodeConfig, "failed to create crypto provider", err)
	}
	return crypto.NewLayer(hal, log)
}

// Store returns the ITS store, or the PS store when ps is set
func (rt *Runtime) Store(ps bool) (*flashfs.FS, error) {
	if !ps {
		return rt.ITS, nil
	}
	if rt.PS == nil {
		return nil, NewError(ErrCodeInvalidInput, "protected storage is not enabled", nil)
	}
	return rt.PS, nil
}

// Stores returns every open store
func (rt *Runtime) Stores() []*flashfs.FS {
	stores := []*flashfs.FS{rt.ITS}
	if rt.PS != nil {
		stores = append(stores, rt.PS)
	}
	return stores
}

// Close releases the flash device
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// StoreName returns the name of the store serving owner
func (rt *Runtime) StoreName(owner int32) string {
	if rt.PS != nil && owner == rt.Config.PS.ClientID {
		return rt.PS.Name()
	}
	return rt.ITS.Name()
}
