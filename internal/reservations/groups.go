package reservations

import (
	"sort"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

// BookingGroup is the logical booking formed by rows sharing a GroupID.
// It is rebuilt on every read and never stored.
type BookingGroup struct {
	GroupID          string                   `json:"groupId"`
	CourtID          int64                    `json:"courtId"`
	Date             string                   `json:"date"`
	StartSlot        schedule.Slot            `json:"startSlot"`
	EndSlotExclusive schedule.Slot            `json:"endSlotExclusive"`
	SlotCount        int                      `json:"slotCount"`
	Status           models.ReservationStatus `json:"status"`
	ClientName       string                   `json:"clientName"`
	ClientPhone      string                   `json:"clientPhone"`
	UserID           string                   `json:"userId,omitempty"`
	ReservationIDs   []int64                  `json:"reservationIds"`
}

type member struct {
	row  models.Reservation
	slot schedule.Slot
}

// GroupReservations partitions rows by GroupID; ungrouped rows form singleton
// groups. A group is confirmed when any member is confirmed, cancelled when
// every member is cancelled, and pending otherwise. Rows with an unparseable
// slot are left out.
func GroupReservations(rows []models.Reservation, s schedule.Schedule) []BookingGroup {
	byKey := make(map[string][]member)
	var order []string
	for _, row := range rows {
		slot, err := schedule.ParseSlot(row.SlotTime)
		if err != nil {
			continue
		}
		key := row.GroupKey()
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], member{row: row, slot: slot})
	}

	groups := make([]BookingGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, buildGroup(byKey[key], s))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Date != groups[j].Date {
			return groups[i].Date < groups[j].Date
		}
		ki, kj := schedule.SortKey(groups[i].StartSlot, s), schedule.SortKey(groups[j].StartSlot, s)
		if ki != kj {
			return ki < kj
		}
		return groups[i].CourtID < groups[j].CourtID
	})
	return groups
}

func buildGroup(members []member, s schedule.Schedule) BookingGroup {
	sort.SliceStable(members, func(i, j int) bool {
		return schedule.SortKey(members[i].slot, s) < schedule.SortKey(members[j].slot, s)
	})

	first := members[0].row
	last := members[len(members)-1]
	group := BookingGroup{
		GroupID:          first.GroupID,
		CourtID:          first.CourtID,
		Date:             dateKey(first.Date),
		StartSlot:        members[0].slot,
		EndSlotExclusive: schedule.Next(last.slot, s),
		SlotCount:        len(members),
		ClientName:       first.ClientName,
		ClientPhone:      first.ClientPhone,
		UserID:           first.UserID,
		ReservationIDs:   make([]int64, 0, len(members)),
	}

	rows := make([]models.Reservation, 0, len(members))
	for _, m := range members {
		group.ReservationIDs = append(group.ReservationIDs, m.row.ID)
		rows = append(rows, m.row)
	}
	group.Status = GroupStatus(rows)
	return group
}

// GroupStatus derives a booking's status from its rows: confirmed when any row
// is confirmed, cancelled when every row is, pending otherwise.
func GroupStatus(rows []models.Reservation) models.ReservationStatus {
	allCancelled := true
	for _, row := range rows {
		switch row.Status {
		case models.StatusConfirmed:
			return models.StatusConfirmed
		case models.StatusPending:
			allCancelled = false
		}
	}
	if allCancelled {
		return models.StatusCancelled
	}
	return models.StatusPending
}
