package storage

import (
	"bytes"
	"fmt"

	"github.com/deploymenttheory/go-its/internal/flashfs"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/sirupsen/logrus"
)

// HandleSet stores an asset through the service
func HandleSet(ctx *app.Context, rt *app.Runtime, req *SetRequest) (*SetResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	flags, err := app.ParseFlags(req.Flags)
	if err != nil {
		return nil, app.NewError(app.ErrCodeInvalidInput, "invalid create flags", err)
	}

	ctx.Log(fmt.Sprintf("Storing %d bytes as %s", req.Length, req.Target.String()))
	if err := rt.Service.Set(req.Target.Owner, req.Target.UID, req.Length, flags, req.Data); err != nil {
		return nil, storageError("set", req.Target, err)
	}

	return &SetResponse{
		Target: req.Target,
		Store:  rt.StoreName(req.Target.Owner),
		Length: req.Length,
		Flags:  app.FlagNames(flags),
	}, nil
}

// HandleGet reads asset data. A zero length reads from the offset to the end
// of the asset.
func HandleGet(ctx *app.Context, rt *app.Runtime, req *GetRequest) (*GetResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	length := req.Length
	if length == 0 {
		info, err := rt.Service.GetInfo(req.Target.Owner, req.Target.UID)
		if err != nil {
			return nil, storageError("get", req.Target, err)
		}
		if req.Offset <= info.Size {
			length = info.Size - req.Offset
		}
	}

	var buf bytes.Buffer
	n, err := rt.Service.Get(req.Target.Owner, req.Target.UID, req.Offset, length, &buf)
	if err != nil {
		return nil, storageError("get", req.Target, err)
	}
	ctx.Log(fmt.Sprintf("Read %d bytes from %s", n, req.Target.String()))

	return &GetResponse{
		Target: req.Target,
		Store:  rt.StoreName(req.Target.Owner),
		Offset: req.Offset,
		Data:   buf.Bytes(),
	}, nil
}

// HandleInfo returns asset metadata
func HandleInfo(ctx *app.Context, rt *app.Runtime, req *InfoRequest) (*InfoResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	info, err := rt.Service.GetInfo(req.Target.Owner, req.Target.UID)
	if err != nil {
		return nil, storageError("get info", req.Target, err)
	}

	return &InfoResponse{
		Target:   req.Target,
		Store:    rt.StoreName(req.Target.Owner),
		Capacity: info.Capacity,
		Size:     info.Size,
		Flags:    app.FlagNames(info.Flags),
	}, nil
}

// HandleRemove deletes an asset
func HandleRemove(ctx *app.Context, rt *app.Runtime, req *RemoveRequest) (*RemoveResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := rt.Service.Remove(req.Target.Owner, req.Target.UID); err != nil {
		return nil, storageError("remove", req.Target, err)
	}
	ctx.Log(fmt.Sprintf("Removed %s", req.Target.String()))

	return &RemoveResponse{Target: req.Target, Store: rt.StoreName(req.Target.Owner)}, nil
}

// HandleFormat wipes the selected stores and formats them empty
func HandleFormat(ctx *app.Context, rt *app.Runtime, req *FormatRequest) (*FormatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	stores, err := selectStores(rt, req.Stores)
	if err != nil {
		return nil, err
	}

	resp := &FormatResponse{}
	for _, fs := range stores {
		ctx.Logger.WithField("store", fs.Name()).Warn("formatting store")
		if err := fs.Wipe(); err != nil {
			return nil, app.NewError(app.ErrCodeStorage, fmt.Sprintf("failed to format %s", fs.Name()), err)
		}
		resp.Stores = append(resp.Stores, fs.Stats())
	}
	return resp, nil
}

// HandleInspect reports the block classification and live files of the
// selected stores
func HandleInspect(ctx *app.Context, rt *app.Runtime, req *InspectRequest) (*InspectResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	stores, err := selectStores(rt, req.Stores)
	if err != nil {
		return nil, err
	}

	resp := &InspectResponse{}
	for _, fs := range stores {
		report, err := fs.Inspect()
		if err != nil {
			return nil, app.NewError(app.ErrCodeFlashAccess, fmt.Sprintf("failed to inspect %s", fs.Name()), err)
		}
		ctx.Logger.WithFields(logrus.Fields{
			"store": fs.Name(),
			"files": len(report.Files),
		}).Debug("inspected store")
		resp.Reports = append(resp.Reports, report)
	}
	return resp, nil
}

// HandleStats returns store counters and the metrics gathered so far
func HandleStats(ctx *app.Context, rt *app.Runtime, req *StatsRequest) (*StatsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	stores, err := selectStores(rt, req.Stores)
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{}
	for _, fs := range stores {
		resp.Stores = append(resp.Stores, fs.Stats())
	}

	resp.Metrics, err = metrics.Gather(rt.Registry)
	if err != nil {
		return nil, app.NewError(app.ErrCodeStorage, "failed to gather metrics", err)
	}
	return resp, nil
}

func selectStores(rt *app.Runtime, sel StoreSelector) ([]*flashfs.FS, error) {
	if sel.All {
		return rt.Stores(), nil
	}
	fs, err := rt.Store(sel.PS)
	if err != nil {
		return nil, err
	}
	return []*flashfs.FS{fs}, nil
}

// storageError wraps a service failure, keeping the status reachable with
// errors.Is
func storageError(op string, target app.AssetTarget, err error) error {
	msg := fmt.Sprintf("%s %s failed with %s", op, target.String(), types.StatusOf(err))
	return app.NewError(app.ErrCodeStorage, msg, err)
}
