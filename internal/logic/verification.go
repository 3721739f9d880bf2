package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

const (
	accuracyRecordsKey        = "accuracy:records"
	defaultVerificationSource = "manual"
)

func verificationClaimKey(predictionID string) string { return "verification:" + predictionID }

// RecordStore is the part of the cache the verifier needs
type RecordStore interface {
	GetLatest(ctx context.Context, id models.FixtureID) (*Lookup, error)
	Put(ctx context.Context, rec *models.PredictionRecord) error
}

// Verifier locks a prediction once its real result is known and appends an
// accuracy record to the statistics projection.
type Verifier struct {
	records RecordStore
	kv      KVStore
	sink    AccuracySink
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewVerifier builds a verifier. sink may be nil when no analytics store is configured.
func NewVerifier(records RecordStore, kv KVStore, sink AccuracySink, logger *zap.Logger) *Verifier {
	return &Verifier{
		records: records,
		kv:      kv,
		sink:    sink,
		logger:  logger.Sugar(),
		now:     time.Now,
	}
}

// Verify scores the fixture's cached prediction against the actual result.
// The verification fields are written once: a second call returns a conflict
// and leaves the stored record untouched.
func (v *Verifier) Verify(ctx context.Context, id models.FixtureID, actual models.ActualResult, source string) (*models.PredictionRecord, error) {
	lk, err := v.records.GetLatest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lk.Found() {
		verificationsTotal.WithLabelValues("not_found").Inc()
		return nil, newError(KindNotFound, fmt.Sprintf("no prediction for fixture %d", id), nil)
	}

	rec := lk.Record
	if rec.Verified {
		verificationsTotal.WithLabelValues("conflict").Inc()
		return nil, newError(KindConflict, fmt.Sprintf("prediction for fixture %d is already verified", id), nil)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if lk.Source == SourceStrong && !VerifyIntegrity(rec) {
		v.logger.Warnw("Integrity hash mismatch on verification", "fixtureId", id, "predictionId", rec.ID)
	}
	if source == "" {
		source = defaultVerificationSource
	}

	// The claim closes the window between the read above and the write below
	claimed, err := v.kv.SetNX(ctx, verificationClaimKey(rec.ID), []byte(source), 0)
	if err != nil {
		return nil, Internal("claim verification", err)
	}
	if !claimed {
		verificationsTotal.WithLabelValues("conflict").Inc()
		return nil, newError(KindConflict, fmt.Sprintf("prediction for fixture %d is already verified", id), nil)
	}

	now := v.now().UTC()
	accuracy := ScoreAccuracy(rec.Prediction, actual)
	rec.Verified = true
	rec.VerifiedAt = &now
	rec.ActualResult = &actual
	rec.Accuracy = &accuracy
	rec.VerificationSource = source

	if err := v.records.Put(ctx, rec); err != nil {
		// Let a retry through, nothing was locked
		if derr := v.kv.Del(context.WithoutCancel(ctx), verificationClaimKey(rec.ID)); derr != nil {
			v.logger.Errorw("Failed to release verification claim", "predictionId", rec.ID, "error", derr)
		}
		return nil, err
	}

	ar := models.AccuracyRecord{
		PredictionID:   rec.ID,
		FixtureID:      rec.FixtureID,
		HomeTeam:       rec.HomeTeam,
		AwayTeam:       rec.AwayTeam,
		League:         rec.League,
		MatchDate:      rec.MatchDate,
		ModelVersion:   rec.ModelVersion,
		PredictedScore: rec.Prediction.PredictedScore,
		ActualScore:    actual.Scoreline(),
		Confidence:     rec.Prediction.ConfidenceLevel,
		Accuracy:       accuracy,
		Source:         source,
		VerifiedAt:     now,
	}
	data, _ := json.Marshal(ar)
	if _, err := v.kv.HSetNX(ctx, accuracyRecordsKey, rec.ID, data); err != nil {
		v.logger.Errorw("Failed to append accuracy record", "predictionId", rec.ID, "error", err)
	}
	if v.sink != nil && !v.sink.Enqueue(&ar) {
		v.logger.Warnw("Accuracy sink rejected record", "predictionId", rec.ID)
	}

	verificationsTotal.WithLabelValues("verified").Inc()
	v.logger.Infow("Verified prediction",
		"fixtureId", id,
		"predictionId", rec.ID,
		"actual", actual.Scoreline(),
		"correct", accuracy.Correct,
	)
	return rec, nil
}

// Stats aggregates every accuracy record in the projection
func (v *Verifier) Stats(ctx context.Context) (*models.AccuracyStats, error) {
	fields, err := v.kv.HGetAll(ctx, accuracyRecordsKey)
	if err != nil {
		return nil, Internal("read accuracy records", err)
	}

	records := make([]models.AccuracyRecord, 0, len(fields))
	for id, raw := range fields {
		var ar models.AccuracyRecord
		if err := json.Unmarshal(raw, &ar); err != nil {
			v.logger.Warnw("Skipping malformed accuracy record", "predictionId", id, "error", err)
			continue
		}
		records = append(records, ar)
	}
	return AggregateAccuracy(records), nil
}
