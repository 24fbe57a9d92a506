package tom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"oracletom/internal/logging"
	"oracletom/internal/services"
)

// StaticColumns are the elasticc2_ppdbdiaobject columns fetched per object.
var StaticColumns = []string{
	"diaobject_id", "ra", "decl", "mwebv", "mwebv_err", "z_final", "z_final_err",
	"hostgal_zphot", "hostgal_zphot_err", "hostgal_zspec", "hostgal_zspec_err",
	"hostgal_ra", "hostgal_dec", "hostgal_snsep", "hostgal_ellipticity",
	"hostgal_mag_u", "hostgal_mag_g", "hostgal_mag_r", "hostgal_mag_i",
	"hostgal_mag_z", "hostgal_mag_y",
}

// SourceColumns are the elasticc2_ppdbdiasource columns fetched per
// observation. The table has no photometry flag column, so fetched rows carry
// no provider flag bits; features.NewSource still honours a photflag value
// when a row has one.
var SourceColumns = []string{"diaobject_id", "midpointtai", "filtername", "psflux", "psfluxerr"}

// RawObject is everything the TOM knows about one transient, still in the
// provider's column names.
type RawObject struct {
	ID      int64
	Hot     HotTransient
	Static  Row
	Sources []Row
	// Truth is nil when the truth table has no entry for the object.
	Truth Row
}

// Querier is the subset of Client the Loader needs.
type Querier interface {
	HotTransients(ctx context.Context, query HotQuery) ([]HotTransient, error)
	RunSQL(ctx context.Context, query string, subdict map[string]any) ([]Row, error)
}

var _ Querier = (*Client)(nil)

// Loader fetches hot transients together with their static, time-series and
// truth rows.
type Loader struct {
	querier Querier
	logger  *slog.Logger
}

// NewLoader wraps a Querier.
func NewLoader(querier Querier, logger *slog.Logger) *Loader {
	return &Loader{querier: querier, logger: logging.NewComponentLogger(logger, "tom-loader")}
}

// Load returns up to limit objects in hot-transient order.
func (l *Loader) Load(ctx context.Context, query HotQuery, limit int) ([]RawObject, error) {
	if limit <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tom", "load", fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}
	hot, err := l.querier.HotTransients(ctx, query)
	if err != nil {
		return nil, err
	}
	l.logger.Info("fetched hot transients", logging.Int("count", len(hot)))

	// Repeated ids do not count toward limit.
	ids := make([]int64, 0, min(len(hot), limit))
	seen := make(map[int64]struct{}, len(hot))
	deduped := hot[:0:0]
	for _, h := range hot {
		if len(deduped) == limit {
			break
		}
		if _, dup := seen[h.ObjectID]; dup {
			continue
		}
		seen[h.ObjectID] = struct{}{}
		ids = append(ids, h.ObjectID)
		deduped = append(deduped, h)
	}
	if len(deduped) == 0 {
		return nil, nil
	}
	subdict := map[string]any{"ids": ids}

	staticRows, err := l.querier.RunSQL(ctx, staticQuery(), subdict)
	if err != nil {
		return nil, fmt.Errorf("load static data: %w", err)
	}
	l.logger.Info("loaded static data", logging.Int("rows", len(staticRows)))

	sourceRows, err := l.querier.RunSQL(ctx, sourceQuery(), subdict)
	if err != nil {
		return nil, fmt.Errorf("load time-series data: %w", err)
	}
	l.logger.Info("loaded time-series data", logging.Int("rows", len(sourceRows)))

	truthRows, err := l.querier.RunSQL(ctx, truthQuery(), subdict)
	if err != nil {
		return nil, fmt.Errorf("load truth data: %w", err)
	}

	statics, err := indexRows(staticRows)
	if err != nil {
		return nil, fmt.Errorf("index static rows: %w", err)
	}
	truths, err := indexRows(truthRows)
	if err != nil {
		return nil, fmt.Errorf("index truth rows: %w", err)
	}
	sources := make(map[int64][]Row, len(ids))
	for i, row := range sourceRows {
		id, err := row.Int64("diaobject_id")
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "tom", "load", fmt.Sprintf("source row %d", i), err)
		}
		sources[id] = append(sources[id], row)
	}

	objects := make([]RawObject, 0, len(deduped))
	for _, h := range deduped {
		static, ok := statics[h.ObjectID]
		if !ok {
			l.logger.Warn("dropping object without static row", logging.Int64(logging.FieldObjectID, h.ObjectID))
			continue
		}
		objects = append(objects, RawObject{
			ID:      h.ObjectID,
			Hot:     h,
			Static:  static,
			Sources: sources[h.ObjectID],
			Truth:   truths[h.ObjectID],
		})
	}
	return objects, nil
}

func indexRows(rows []Row) (map[int64]Row, error) {
	out := make(map[int64]Row, len(rows))
	for i, row := range rows {
		id, err := row.Int64("diaobject_id")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if _, dup := out[id]; !dup {
			out[id] = row
		}
	}
	return out, nil
}

func staticQuery() string {
	return "SELECT " + strings.Join(StaticColumns, ", ") +
		" FROM elasticc2_ppdbdiaobject WHERE diaobject_id = ANY(%(ids)s) ORDER BY diaobject_id"
}

func sourceQuery() string {
	return "SELECT " + strings.Join(SourceColumns, ", ") +
		" FROM elasticc2_ppdbdiasource WHERE diaobject_id = ANY(%(ids)s) ORDER BY diaobject_id, midpointtai"
}

func truthQuery() string {
	return "SELECT diaobject_id, gentype FROM elasticc2_diaobjecttruth WHERE diaobject_id = ANY(%(ids)s)"
}
