package osmparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

type Format uint8

const (
	FORMAT_PBF Format = iota
	FORMAT_XML
	FORMAT_XML_BZ2
)

// FormatOf. osm xml for .osm / .xml files, bzip2 osm xml for .bz2 (geofabrik .osm.bz2), pbf otherwise.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".osm", ".xml":
		return FORMAT_XML
	case ".bz2":
		return FORMAT_XML_BZ2
	default:
		return FORMAT_PBF
	}
}

type node struct {
	id    int64
	coord NodeCoord
}

type NodeCoord struct {
	lat float64
	lon float64
}

type osmWay struct {
	id    int64
	nodes []int64
	attr  datastructure.WaySegmentAttributes
}

type Options struct {
	// MinComponentSize. segments of connected components with fewer nodes are dropped, 0 keeps everything.
	MinComponentSize int
}

// OsmParser. turns osm ways into way segments split at junctions and access=no barriers.
// one parser per file.
type OsmParser struct {
	wayNodeMap      map[int64]NodeType
	acceptedNodeMap map[int64]NodeCoord
	barrierNodes    map[int64]bool
	maxNodeID       int64
	ways            []osmWay
	segments        []*datastructure.WaySegment
	missingNodes    int
	opts            Options
	logger          *zap.Logger
}

func NewOSMParser(logger *zap.Logger, opts Options) *OsmParser {
	return &OsmParser{
		wayNodeMap:      make(map[int64]NodeType),
		acceptedNodeMap: make(map[int64]NodeCoord),
		barrierNodes:    make(map[int64]bool),
		ways:            make([]osmWay, 0),
		opts:            opts,
		logger:          logger,
	}
}

func (p *OsmParser) Parse(ctx context.Context, mapFile string) ([]*datastructure.WaySegment, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.ParseReader(ctx, f, FormatOf(mapFile))
}

// bz2Scanner. releases the bzip2 reader together with the xml scanner.
type bz2Scanner struct {
	osm.Scanner
	bz *bzip2.Reader
}

func (s *bz2Scanner) Close() error {
	err := s.Scanner.Close()
	if bzErr := s.bz.Close(); err == nil {
		err = bzErr
	}
	return err
}

func newScanner(ctx context.Context, r io.Reader, format Format) (osm.Scanner, error) {
	switch format {
	case FORMAT_XML:
		return osmxml.New(ctx, r), nil
	case FORMAT_XML_BZ2:
		bz, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, err
		}
		return &bz2Scanner{Scanner: osmxml.New(ctx, bz), bz: bz}, nil
	default:
		// must not be parallel
		return osmpbf.New(ctx, r, 0), nil
	}
}

// ParseReader. two passes over r: the first finds junction nodes, the second reads coordinates & ways.
func (p *OsmParser) ParseReader(ctx context.Context, r io.ReadSeeker, format Format) ([]*datastructure.WaySegment, error) {
	scanner, err := newScanner(ctx, r, format)
	if err != nil {
		return nil, err
	}
	countWays := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || !acceptOsmWay(way) {
			continue
		}
		if (countWays+1)%50000 == 0 {
			p.logger.Sugar().Infof("scanning openstreetmap ways: %d...", countWays+1)
		}
		countWays++

		for i, node := range way.Nodes {
			if _, ok := p.wayNodeMap[int64(node.ID)]; !ok {
				if i == 0 || i == len(way.Nodes)-1 {
					p.wayNodeMap[int64(node.ID)] = END_NODE
				} else {
					p.wayNodeMap[int64(node.ID)] = BETWEEN_NODE
				}
			} else {
				p.wayNodeMap[int64(node.ID)] = JUNCTION_NODE
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("scanning ways: %w", err)
	}
	scanner.Close()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	scanner, err = newScanner(ctx, r, format)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()
	countNodes := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if (countNodes+1)%500000 == 0 {
				p.logger.Sugar().Infof("processing openstreetmap nodes: %d...", countNodes+1)
			}
			countNodes++
			p.maxNodeID = max(p.maxNodeID, int64(o.ID))

			if _, ok := p.wayNodeMap[int64(o.ID)]; ok {
				p.acceptedNodeMap[int64(o.ID)] = NodeCoord{lat: o.Lat, lon: o.Lon}
			}
			accessType := o.Tags.Find("access")
			barrierType := o.Tags.Find("barrier")
			if _, ok := acceptedBarrierType[barrierType]; ok && accessType == "no" {
				p.barrierNodes[int64(o.ID)] = true
			}
		case *osm.Way:
			if !acceptOsmWay(o) {
				continue
			}
			nodes := make([]int64, len(o.Nodes))
			for i, n := range o.Nodes {
				nodes[i] = int64(n.ID)
			}
			p.ways = append(p.ways, osmWay{id: int64(o.ID), nodes: nodes, attr: wayAttributes(o)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning nodes: %w", err)
	}

	for _, way := range p.ways {
		p.processWay(way)
	}
	if p.missingNodes > 0 {
		p.logger.Sugar().Warnf("skipped %d way pieces referencing nodes missing from the extract", p.missingNodes)
	}

	segments := p.segments
	if p.opts.MinComponentSize > 0 {
		segments = dropSmallComponents(segments, p.opts.MinComponentSize)
	}
	p.logger.Sugar().Infof("number of ways: %d, number of segments: %d (dropped %d on small islands)",
		len(p.ways), len(segments), len(p.segments)-len(segments))
	return segments, nil
}

// processWay. split the way at every junction node.
func (p *OsmParser) processWay(way osmWay) {
	waySegment := []node{}
	for _, id := range way.nodes {
		nodeData := node{id: id, coord: p.acceptedNodeMap[id]}
		if p.isJunctionNode(id) {
			waySegment = append(waySegment, nodeData)
			p.processSegment(waySegment, way)
			waySegment = []node{nodeData}
		} else {
			waySegment = append(waySegment, nodeData)
		}
	}
	if len(waySegment) > 1 {
		p.processSegment(waySegment, way)
	}
}

func (p *OsmParser) processSegment(segment []node, way osmWay) {
	if len(segment) < 2 || (len(segment) == 2 && segment[0].id == segment[1].id) {
		return
	} else if len(segment) > 2 && segment[0].id == segment[len(segment)-1].id {
		// loop
		p.processSegment2(segment[0:len(segment)-1], way)
		p.processSegment2(segment[len(segment)-2:], way)
	} else {
		p.processSegment2(segment, way)
	}
}

// processSegment2. split at barrier nodes.
func (p *OsmParser) processSegment2(segment []node, way osmWay) {
	waySegment := []node{}
	for i := 0; i < len(segment); i++ {
		nodeData := segment[i]
		if _, ok := p.barrierNodes[nodeData.id]; ok {
			if len(waySegment) != 0 {
				waySegment = append(waySegment, nodeData)
				p.addSegment(waySegment, way)
				waySegment = []node{}
			}
			// same coordinate, fresh id, so the pieces on both sides of the barrier stay disconnected
			nodeData = p.copyNode(nodeData)
			waySegment = append(waySegment, nodeData)
		} else {
			waySegment = append(waySegment, nodeData)
		}
	}
	if len(waySegment) > 1 {
		p.addSegment(waySegment, way)
	}
}

func (p *OsmParser) copyNode(nodeData node) node {
	p.maxNodeID++
	p.acceptedNodeMap[p.maxNodeID] = nodeData.coord
	return node{id: p.maxNodeID, coord: nodeData.coord}
}

func (p *OsmParser) addSegment(segment []node, way osmWay) {
	from, to := segment[0], segment[len(segment)-1]
	if from.id == to.id {
		return
	}
	geometry := make([]geo.Coordinate, 0, len(segment))
	for _, n := range segment {
		if _, ok := p.acceptedNodeMap[n.id]; !ok {
			p.missingNodes++
			return
		}
		geometry = append(geometry, geo.NewCoordinate(n.coord.lat, n.coord.lon))
	}
	id := datastructure.SegmentID(len(p.segments) + 1)
	p.segments = append(p.segments, datastructure.NewWaySegment(id, datastructure.NodeID(from.id),
		datastructure.NodeID(to.id), geometry, way.attr))
}

func (p *OsmParser) isJunctionNode(nodeID int64) bool {
	return p.wayNodeMap[nodeID] == JUNCTION_NODE
}

// dropSmallComponents. keep segments whose connected component, ignoring one-way rules, has at least minSize nodes.
func dropSmallComponents(segments []*datastructure.WaySegment, minSize int) []*datastructure.WaySegment {
	scc := datastructure.RunKosaraju(segments, func(*datastructure.WaySegment, datastructure.Direction) bool {
		return true
	})
	kept := make([]*datastructure.WaySegment, 0, len(segments))
	for _, s := range segments {
		if scc.Size(scc.ComponentOf(s.GetStartNode())) >= minSize {
			kept = append(kept, s)
		}
	}
	return kept
}
