package sysupdate

import (
	"strconv"
	"time"

	"github.com/iesreza/hrdesk-backend/lib/idset"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// participants are the recipients plus the author of the update
func participants(tx *gorm.DB, update *SystemUpdate) (idset.Set, error) {
	var ids []string
	if err := tx.Model(&Recipient{}).Where("update_id = ?", update.ID).Pluck("employee_id", &ids).Error; err != nil {
		return nil, err
	}
	set := idset.New(ids...)
	set.Add(update.CreatedBy)
	return set, nil
}

func recipients(tx *gorm.DB, updateID uint) (idset.Set, error) {
	var ids []string
	if err := tx.Model(&Recipient{}).Where("update_id = ?", updateID).Pluck("employee_id", &ids).Error; err != nil {
		return nil, err
	}
	return idset.New(ids...), nil
}

func readers(tx *gorm.DB, updateID uint) (idset.Set, error) {
	var ids []string
	if err := tx.Model(&Read{}).Where("update_id = ?", updateID).Pluck("employee_id", &ids).Error; err != nil {
		return nil, err
	}
	return idset.New(ids...), nil
}

// markRead is idempotent; a second call leaves the first read time in place.
func markRead(tx *gorm.DB, updateID uint, employeeID string, at time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Read{UpdateID: updateID, EmployeeID: employeeID, ReadAt: at}).Error
}

func markDiscussionRead(tx *gorm.DB, discussionIDs []uint, employeeID string, at time.Time) error {
	if len(discussionIDs) == 0 {
		return nil
	}
	rows := make([]DiscussionRead, 0, len(discussionIDs))
	for _, id := range discussionIDs {
		rows = append(rows, DiscussionRead{DiscussionID: id, EmployeeID: employeeID, ReadAt: at})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// threadSets holds, per update, the discussion ids and who read each of them
type threadSets struct {
	messages map[uint]idset.Set
	authors  map[string]string
	readBy   map[string]idset.Set
}

func key(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func loadThreads(tx *gorm.DB, updateIDs []uint) (*threadSets, error) {
	sets := &threadSets{
		messages: map[uint]idset.Set{},
		authors:  map[string]string{},
		readBy:   map[string]idset.Set{},
	}
	if len(updateIDs) == 0 {
		return sets, nil
	}

	var discussions []Discussion
	err := tx.Select("id", "update_id", "author_id").Where("update_id IN ?", updateIDs).Find(&discussions).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(discussions))
	for _, d := range discussions {
		if sets.messages[d.UpdateID] == nil {
			sets.messages[d.UpdateID] = idset.New()
		}
		sets.messages[d.UpdateID].Add(key(d.ID))
		sets.authors[key(d.ID)] = d.AuthorID
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return sets, nil
	}

	var reads []DiscussionRead
	if err := tx.Where("discussion_id IN ?", ids).Find(&reads).Error; err != nil {
		return nil, err
	}
	for _, r := range reads {
		k := key(r.DiscussionID)
		if sets.readBy[k] == nil {
			sets.readBy[k] = idset.New()
		}
		sets.readBy[k].Add(r.EmployeeID)
	}
	return sets, nil
}

// readSet returns the discussions of updateID that employeeID has seen.
// Messages the employee wrote count as seen.
func (t *threadSets) readSet(updateID uint, employeeID string) idset.Set {
	seen := idset.New()
	for id := range t.messages[updateID] {
		if t.authors[id] == employeeID || t.readBy[id].Has(employeeID) {
			seen.Add(id)
		}
	}
	return seen
}

func (t *threadSets) unread(updateID uint, employeeID string) int {
	all := t.messages[updateID]
	if all == nil {
		return 0
	}
	return all.Difference(t.readSet(updateID, employeeID)).Len()
}
