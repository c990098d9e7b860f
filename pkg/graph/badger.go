package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/spatialindex"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
)

const (
	saveBatchSize    = 1000
	defaultCacheSize = 1 << 16
)

// BadgerStore. segments persisted in badger, adjacency and r-tree kept in memory after Load.
// segments themselves are read through an lru cache.
type BadgerStore struct {
	db     *badger.DB
	cache  *lru.Cache[datastructure.SegmentID, *datastructure.WaySegment]
	adj    adjacency
	rt     *spatialindex.Rtree
	log    *zap.Logger
	loaded bool
}

// OpenBadgerStore. open (or create) the store in dir. empty dir = in-memory badger, used by tests.
func OpenBadgerStore(dir string, cacheSize int, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[datastructure.SegmentID, *datastructure.WaySegment](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BadgerStore{
		db:    db,
		cache: cache,
		adj:   make(adjacency),
		rt:    spatialindex.NewRtree(),
		log:   log,
	}, nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

type batchData struct {
	key   []byte
	value []byte
}

// Save. write segments in batches of saveBatchSize. call Load afterwards to rebuild the index.
func (bs *BadgerStore) Save(ctx context.Context, segments []*datastructure.WaySegment) error {
	bs.log.Info("saving way segments to badger...", zap.Int("segments", len(segments)))
	batches := make([]batchData, 0, saveBatchSize)
	for _, s := range segments {
		if util.StopConcurrentOperation(ctx) {
			return ctx.Err()
		}
		val, err := encodeSegment(s)
		if err != nil {
			return err
		}
		batches = append(batches, batchData{key: segmentKey(s.GetID()), value: val})
		if len(batches) == saveBatchSize {
			if err := bs.saveBatch(batches); err != nil {
				return err
			}
			batches = make([]batchData, 0, saveBatchSize)
		}
	}
	if len(batches) > 0 {
		if err := bs.saveBatch(batches); err != nil {
			return err
		}
	}
	bs.cache.Purge()
	bs.log.Info("saving way segments to badger done")
	return nil
}

func (bs *BadgerStore) saveBatch(batch []batchData) error {
	wb := bs.db.NewWriteBatch()
	defer wb.Cancel()

	for _, data := range batch {
		if err := wb.Set(data.key, data.value); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush segment batch: %w", err)
	}
	return nil
}

// Load. scan every stored segment and build the adjacency list & r-tree.
// unreadable records are logged and skipped.
func (bs *BadgerStore) Load(ctx context.Context) error {
	adj := make(adjacency)
	rt := spatialindex.NewRtree()
	count := 0

	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(segmentKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if util.StopConcurrentOperation(ctx) {
				return ctx.Err()
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			s, err := decodeSegment(val)
			if err != nil {
				bs.log.Warn("skipping unreadable segment record", zap.ByteString("key", it.Item().KeyCopy(nil)),
					zap.Error(err))
				continue
			}
			adj.add(s)
			rt.Insert(s)
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}
	adj.sort()

	bs.adj = adj
	bs.rt = rt
	bs.loaded = true
	bs.log.Info("badger graph store loaded", zap.Int("segments", count))
	return nil
}

func (bs *BadgerStore) SegmentByID(ctx context.Context, id datastructure.SegmentID) (*datastructure.WaySegment, error) {
	if s, ok := bs.cache.Get(id); ok {
		return s, nil
	}

	var val []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(segmentKey(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, util.WrapErrorf(ErrSegmentNotFound, util.ErrNotFound, "segment %d", id)
	}
	if err != nil {
		return nil, err
	}

	s, err := decodeSegment(val)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "segment %d", id)
	}
	bs.cache.Add(id, s)
	return s, nil
}

func (bs *BadgerStore) SegmentsNear(ctx context.Context, c geo.Coordinate, radius float64) ([]*datastructure.WaySegment, error) {
	ids := bs.rt.SearchWithinRadius(c, radius)
	out := make([]*datastructure.WaySegment, 0, len(ids))
	for _, id := range ids {
		s, err := bs.SegmentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if withinRadius(s, c, radius) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (bs *BadgerStore) EdgesFrom(ctx context.Context, node datastructure.NodeID) ([]Edge, error) {
	refs := bs.adj[node]
	out := make([]Edge, 0, len(refs))
	for _, r := range refs {
		s, err := bs.SegmentByID(ctx, r.segment)
		if err != nil {
			return nil, err
		}
		out = append(out, Edge{Segment: s, Direction: r.direction})
	}
	return out, nil
}

// Loaded. false until Load succeeds, the spatial queries return nothing before that.
func (bs *BadgerStore) Loaded() bool {
	return bs.loaded
}
