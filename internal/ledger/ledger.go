package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/miradorstack/mirador-sentinel/internal/models"
	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// Header is the fixed first row of every ledger file.
var Header = []string{
	"timestamp",
	"cpu",
	"ram",
	"disk_read",
	"disk_write",
	"net_sent",
	"net_recv",
	"proc",
	"predicted_anomaly",
	"user_label",
}

var (
	// ErrWriteFailed reports that an accepted submission could not be persisted.
	ErrWriteFailed = errors.New("ledger write failed")
	// ErrDuplicateEpisode reports a second row for an episode already appended.
	ErrDuplicateEpisode = errors.New("episode already recorded")
)

// Ledger appends feedback rows to a CSV file. Rows are never rewritten or removed.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	written map[string]struct{}
	open    func(name string, flag int, perm os.FileMode) (*os.File, error)
}

// New creates a Ledger writing to path. The file is created on first append.
func New(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		path:    path,
		logger:  logger,
		written: make(map[string]struct{}),
		open:    os.OpenFile,
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Append writes one row for episodeID. A second call for the same episode is refused
// with ErrDuplicateEpisode and writes nothing. The episode counts as recorded even
// when the write fails, so a failed row is lost rather than retried into a duplicate.
func (l *Ledger) Append(episodeID string, rec models.FeedbackRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if episodeID != "" {
		if _, seen := l.written[episodeID]; seen {
			return ErrDuplicateEpisode
		}
		l.written[episodeID] = struct{}{}
	}

	if err := l.appendRow(EncodeRecord(rec)); err != nil {
		return utils.WrapKind("ledger.Append", ErrWriteFailed, err)
	}

	l.logger.Debug("feedback row appended",
		slog.String("path", l.path),
		slog.String("episode_id", episodeID),
		slog.String("label", string(rec.UserLabel)))
	return nil
}

func (l *Ledger) appendRow(row []string) (err error) {
	f, err := l.open(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", l.path, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", l.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// EncodeRecord renders rec in Header column order.
func EncodeRecord(rec models.FeedbackRecord) []string {
	s := rec.Sample
	return []string{
		utils.FormatTimestamp(rec.Timestamp),
		formatFloat(s.CPU),
		formatFloat(s.RAMUsedPercent),
		formatFloat(s.DiskReadMBps),
		formatFloat(s.DiskWriteMBps),
		formatFloat(s.NetSentKBps),
		formatFloat(s.NetRecvKBps),
		strconv.Itoa(s.ProcessCount),
		formatBool(rec.PredictedAnomaly),
		string(rec.UserLabel),
	}
}

// ParseRecord rebuilds a record from a data row.
func ParseRecord(row []string) (models.FeedbackRecord, error) {
	if len(row) != len(Header) {
		return models.FeedbackRecord{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}

	ts, err := utils.ParseTimestamp(row[0])
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("timestamp: %w", err)
	}

	floats := make([]float64, 6)
	for i := range floats {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.FeedbackRecord{}, fmt.Errorf("%s: %w", Header[i+1], err)
		}
		floats[i] = v
	}

	proc, err := strconv.Atoi(row[7])
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("proc: %w", err)
	}
	predicted, err := strconv.ParseBool(row[8])
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("predicted_anomaly: %w", err)
	}
	label, err := models.ParseLabel(row[9])
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("user_label: %w", err)
	}

	return models.FeedbackRecord{
		Timestamp: ts,
		Sample: models.MetricsSample{
			CPU:            floats[0],
			RAMUsedPercent: floats[1],
			DiskReadMBps:   floats[2],
			DiskWriteMBps:  floats[3],
			NetSentKBps:    floats[4],
			NetRecvKBps:    floats[5],
			ProcessCount:   proc,
			AnomalyFlag:    predicted,
			Reasons:        []string{},
		},
		PredictedAnomaly: predicted,
		UserLabel:        label,
	}, nil
}

// ReadAll parses every data row of the ledger at path.
func ReadAll(path string) ([]models.FeedbackRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, header[i])
		}
	}

	var records []models.FeedbackRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		rec, err := ParseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
