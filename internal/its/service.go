// Package its implements the trusted storage service: client request
// validation, file id derivation, routing between the ITS and PS stores and
// streaming of asset data through a bounded buffer, with optional
// authenticated encryption.
package its

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/deploymenttheory/go-its/internal/crypto"
	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/sirupsen/logrus"
)

// Options configures a Service
type Options struct {
	// BufferSize bounds the asset data held in memory at once. Zero selects
	// the maximum file size of the ITS store. With encryption it must equal
	// that size.
	BufferSize uint32

	// Crypto enables authenticated encryption of asset data.
	Crypto *crypto.Layer

	// PS is the optional protected storage context. Requests from
	// PSClientID are routed to it.
	PS         *Store
	PSClientID int32

	Logger  logrus.FieldLogger
	Metrics *metrics.Collector
}

// Service serves set, get, get-info and remove requests. Requests are
// serialised; each runs to completion before the next starts.
type Service struct {
	mu sync.Mutex

	its      Store
	ps       *Store
	psClient int32

	crypt   *crypto.Layer
	log     logrus.FieldLogger
	metrics *metrics.Collector

	assetBuf []byte
	encBuf   []byte
}

// NewService creates a service over the ITS store and options. Init must be
// called before serving requests.
func NewService(store Store, opts Options) (*Service, error) {
	if store.FS == nil {
		return nil, fmt.Errorf("%w: ITS store is required", types.ErrProgrammerError)
	}
	if opts.PS != nil && opts.PS.FS == nil {
		return nil, fmt.Errorf("%w: PS store has no filesystem", types.ErrProgrammerError)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	maxAsset := store.FS.MaxFileSize()
	bufSize := opts.BufferSize
	if bufSize == 0 {
		bufSize = maxAsset
	}
	if opts.Crypto != nil && bufSize != maxAsset {
		return nil, fmt.Errorf("%w: buffer size %d must equal the maximum asset size %d when encryption is enabled", types.ErrProgrammerError, bufSize, maxAsset)
	}
	if bufSize == 0 {
		return nil, fmt.Errorf("%w: asset buffer size must be non-zero", types.ErrProgrammerError)
	}

	s := &Service{
		its:      store,
		ps:       opts.PS,
		psClient: opts.PSClientID,
		crypt:    opts.Crypto,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		assetBuf: make([]byte, bufSize),
	}
	if s.crypt != nil {
		s.encBuf = make([]byte, bufSize)
	}
	return s, nil
}

// Init prepares every store. A store configured to create its layout is
// wiped and prepared again when the first attempt fails.
func (s *Service) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.prepare(s.its); err != nil {
		return err
	}
	if s.ps != nil {
		return s.prepare(*s.ps)
	}
	return nil
}

func (s *Service) prepare(st Store) error {
	log := s.log.WithField("store", st.FS.Name())

	err := st.FS.Prepare()
	if err == nil {
		return nil
	}
	if !st.CreateLayout {
		return fmt.Errorf("failed to prepare %s: %w", st.FS.Name(), err)
	}

	log.WithError(err).Warn("store unusable, creating a new flash layout")
	if err := st.FS.Wipe(); err != nil {
		return fmt.Errorf("failed to wipe %s: %w", st.FS.Name(), err)
	}
	if err := st.FS.Prepare(); err != nil {
		return fmt.Errorf("failed to prepare %s after wipe: %w", st.FS.Name(), err)
	}
	s.metrics.RecordRecovery(st.FS.Name(), "create_layout")
	return nil
}

// Set stores length bytes read from r as the asset (owner, uid)
func (s *Service) Set(owner int32, uid uint64, length uint32, flags types.CreateFlags, r io.Reader) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.store(owner)
	defer func() { s.metrics.RecordOperation(fs.Name(), "set", err) }()

	if uid == types.InvalidUID {
		return fmt.Errorf("%w: uid 0 is reserved", types.ErrInvalidArgument)
	}
	if !flags.Supported() {
		return fmt.Errorf("%w: unsupported create flags %#x", types.ErrInvalidArgument, uint32(flags))
	}
	if s.crypt != nil && length > uint32(len(s.assetBuf)) {
		return fmt.Errorf("%w: asset of %d bytes exceeds the %d byte buffer", types.ErrBufferTooSmall, length, len(s.assetBuf))
	}

	fid := types.NewFileID(owner, uid)
	if err := s.checkWritable(fs, fid); err != nil {
		return err
	}

	log := s.log.WithFields(logrus.Fields{"store": fs.Name(), "fid": fid.String(), "length": length})
	defer clear(s.assetBuf)

	info := types.FileInfo{
		SizeMax:       length,
		Flags:         flags | types.FlagCreate | types.FlagTruncate,
		PlaintextSize: length,
	}

	if s.crypt != nil {
		defer clear(s.encBuf)
		if err := s.readClient(r, s.assetBuf[:length]); err != nil {
			return err
		}
		if err := s.crypt.Seal(fid, &info, s.assetBuf[:length], s.encBuf[:length]); err != nil {
			return fmt.Errorf("failed to encrypt asset: %w", err)
		}
		if err := fs.FileWrite(fid, info, s.encBuf[:length], 0); err != nil {
			return err
		}
		log.Debug("stored encrypted asset")
		return nil
	}

	var offset uint32
	remaining := length
	for {
		n := min(remaining, uint32(len(s.assetBuf)))
		if err := s.readClient(r, s.assetBuf[:n]); err != nil {
			return err
		}
		if err := fs.FileWrite(fid, info, s.assetBuf[:n], offset); err != nil {
			return err
		}
		info.Flags &^= types.FlagCreate | types.FlagTruncate
		offset += n
		remaining -= n
		if remaining == 0 {
			break
		}
	}
	log.Debug("stored asset")
	return nil
}

// Get writes up to length bytes of the asset starting at offset to w and
// returns the number of bytes written. Reads past the end are clipped.
func (s *Service) Get(owner int32, uid uint64, offset, length uint32, w io.Writer) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.store(owner)
	defer func() { s.metrics.RecordOperation(fs.Name(), "get", err) }()

	if uid == types.InvalidUID {
		return 0, fmt.Errorf("%w: uid 0 is reserved", types.ErrInvalidArgument)
	}
	if s.crypt != nil && length > uint32(len(s.assetBuf)) {
		return 0, fmt.Errorf("%w: read of %d bytes exceeds the %d byte buffer", types.ErrBufferTooSmall, length, len(s.assetBuf))
	}

	fid := types.NewFileID(owner, uid)
	info, err := fs.FileGetInfo(fid)
	if err != nil {
		return 0, err
	}

	size := info.SizeCurrent
	if offset > size {
		return 0, fmt.Errorf("%w: offset %d beyond asset size %d", types.ErrInvalidArgument, offset, size)
	}
	length = min(length, size-offset)
	defer clear(s.assetBuf)

	if s.crypt != nil {
		defer clear(s.encBuf)
		if size > uint32(len(s.encBuf)) {
			return 0, fmt.Errorf("%w: stored asset of %d bytes exceeds the %d byte buffer", types.ErrBufferTooSmall, size, len(s.encBuf))
		}
		if err := fs.FileRead(fid, size, 0, s.encBuf); err != nil {
			return 0, err
		}
		if err := s.crypt.Open(fid, info, s.encBuf[:size], s.assetBuf[:size]); err != nil {
			return 0, err
		}
		return s.writeClient(w, s.assetBuf[offset:offset+length])
	}

	for length > 0 {
		chunk := min(length, uint32(len(s.assetBuf)))
		if err := fs.FileRead(fid, chunk, offset, s.assetBuf); err != nil {
			return n, err
		}
		written, err := s.writeClient(w, s.assetBuf[:chunk])
		n += written
		if err != nil {
			return n, err
		}
		offset += chunk
		length -= chunk
	}
	return n, nil
}

// GetInfo returns the metadata of the asset (owner, uid)
func (s *Service) GetInfo(owner int32, uid uint64) (info types.StorageInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.store(owner)
	defer func() { s.metrics.RecordOperation(fs.Name(), "get_info", err) }()

	if uid == types.InvalidUID {
		return types.StorageInfo{}, fmt.Errorf("%w: uid 0 is reserved", types.ErrInvalidArgument)
	}
	fi, err := fs.FileGetInfo(types.NewFileID(owner, uid))
	if err != nil {
		return types.StorageInfo{}, err
	}
	return types.StorageInfo{
		Capacity: fi.SizeCurrent,
		Size:     fi.SizeCurrent,
		Flags:    fi.Flags.User(),
	}, nil
}

// Remove deletes the asset (owner, uid)
func (s *Service) Remove(owner int32, uid uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.store(owner)
	defer func() { s.metrics.RecordOperation(fs.Name(), "remove", err) }()

	if uid == types.InvalidUID {
		return fmt.Errorf("%w: uid 0 is reserved", types.ErrInvalidArgument)
	}
	fid := types.NewFileID(owner, uid)
	fi, err := fs.FileGetInfo(fid)
	if err != nil {
		return err
	}
	if fi.Flags.IsWriteOnce() {
		return fmt.Errorf("%w: asset is write-once", types.ErrNotPermitted)
	}
	if err := fs.FileDelete(fid); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"store": fs.Name(), "fid": fid.String()}).Debug("removed asset")
	return nil
}

// store selects the context serving owner
func (s *Service) store(owner int32) interfaces.FileStore {
	if s.ps != nil && owner == s.psClient {
		return s.ps.FS
	}
	return s.its.FS
}

func (s *Service) checkWritable(fs interfaces.FileStore, fid types.FileID) error {
	info, err := fs.FileGetInfo(fid)
	switch {
	case err == nil:
		if info.Flags.IsWriteOnce() {
			return fmt.Errorf("%w: asset is write-once", types.ErrNotPermitted)
		}
		return nil
	case errors.Is(err, types.ErrDoesNotExist):
		return nil
	default:
		return err
	}
}

func (s *Service) readClient(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if r == nil {
		return fmt.Errorf("%w: no asset data source", types.ErrInvalidArgument)
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("failed to read asset data: %w: %w", types.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Service) writeClient(w io.Writer, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if w == nil {
		return 0, fmt.Errorf("%w: no asset data sink", types.ErrInvalidArgument)
	}
	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write asset data: %w: %w", types.ErrGenericError, err)
	}
	return n, nil
}
