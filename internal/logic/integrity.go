package logic

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/matchcast/predictions-api/internal/models"
)

// integrityPayload is the hashed view of a record: identity plus payload.
// Verification state is excluded so locking a record keeps its hash valid.
type integrityPayload struct {
	FixtureID  models.FixtureID  `json:"fixtureId"`
	HomeTeam   string            `json:"homeTeam"`
	AwayTeam   string            `json:"awayTeam"`
	League     string            `json:"league"`
	MatchDate  time.Time         `json:"matchDate"`
	Prediction models.Prediction `json:"prediction"`
}

// IntegrityHash returns the hex SHA256 fingerprint of a record
func IntegrityHash(rec *models.PredictionRecord) string {
	b, _ := json.Marshal(integrityPayload{
		FixtureID:  rec.FixtureID,
		HomeTeam:   rec.HomeTeam,
		AwayTeam:   rec.AwayTeam,
		League:     rec.League,
		MatchDate:  rec.MatchDate.UTC(),
		Prediction: rec.Prediction,
	})
	h := sha256.New()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyIntegrity recomputes the fingerprint and compares it to the stored one
func VerifyIntegrity(rec *models.PredictionRecord) bool {
	return rec.IntegrityHash != "" && rec.IntegrityHash == IntegrityHash(rec)
}
