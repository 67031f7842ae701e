package mrf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iesreza/hrdesk-backend/lib/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sequenceName = "mrf_number"

// NumberFormat describes how minted numbers are rendered, e.g. MRF-000042
type NumberFormat struct {
	Prefix string
	Digits int
}

func (f NumberFormat) Format(value int64) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Digits, value)
}

// Parse extracts the numeric suffix of an issued number
func (f NumberFormat) Parse(number string) (int64, bool) {
	suffix, ok := strings.CutPrefix(number, f.Prefix)
	if !ok || suffix == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// mintNumber issues the next MRF number. It must run inside the transition
// transaction: the sequence row stays locked until that transaction ends, so
// concurrent approvals are serialized on it.
func mintNumber(tx *gorm.DB, format NumberFormat) (string, error) {
	seq, err := lockSequence(tx)
	if database.IsNotFound(err) {
		if err = seedSequence(tx, format); err != nil {
			return "", err
		}
		seq, err = lockSequence(tx)
	}
	if err != nil {
		return "", err
	}

	seq.LastValue++
	if err := tx.Model(&Sequence{}).Where("name = ?", sequenceName).Update("last_value", seq.LastValue).Error; err != nil {
		return "", err
	}
	return format.Format(seq.LastValue), nil
}

func lockSequence(tx *gorm.DB) (Sequence, error) {
	var seq Sequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", sequenceName).
		First(&seq).Error
	return seq, err
}

// seedSequence creates the sequence row from the highest number already
// issued. Two instances racing here both insert the same value and one of
// the inserts is ignored.
func seedSequence(tx *gorm.DB, format NumberFormat) error {
	highest, err := highestIssued(tx, format)
	if err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Sequence{Name: sequenceName, LastValue: highest}).Error
}

func highestIssued(tx *gorm.DB, format NumberFormat) (int64, error) {
	var numbers []string
	err := tx.Model(&Requisition{}).
		Where("mrf_number LIKE ?", format.Prefix+"%").
		Pluck("mrf_number", &numbers).Error
	if err != nil {
		return 0, err
	}
	var highest int64
	for _, number := range numbers {
		if value, ok := format.Parse(number); ok && value > highest {
			highest = value
		}
	}
	return highest, nil
}
