package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/record"
)

var (
	jst      = time.FixedZone("JST", 9*60*60)
	fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, jst)
)

func testOptions() Options {
	return Options{Location: jst, Clock: func() time.Time { return fixedNow }}
}

func newDiskStores(t *testing.T) (*Disk, *Reservations, *BlockedDates) {
	t.Helper()
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	return disk,
		NewReservations(disk, ReservationsFile, testOptions()),
		NewBlockedDates(disk, BlockedDatesFile, testOptions())
}

func newReservation(name, date string) booking.NewReservation {
	return booking.NewReservation{Name: name, Date: date, Time: "午前", Category: "見学"}
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func TestReservations_ListCreatesHeaderOnlyFile(t *testing.T) {
	disk, res, _ := newDiskStores(t)

	rows, err := res.List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, rows)
	data, err := os.ReadFile(disk.Path(ReservationsFile))
	require.NoError(t, err)
	assert.Equal(t, record.EmptyFile(record.NewReservationCodec(jst)), data)
	assert.True(t, bytes.HasPrefix(data, record.FileHeaderPrefix()))
}

func TestReservations_CreateOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	disk, res, _ := newDiskStores(t)

	// WHEN: a valid reservation is created on a missing file
	id, err := res.Create(ctx, booking.NewReservation{
		Name: "  ACME  ", Contact: "a@example.com", Date: "2025-03-12",
		Time: "午前", Category: "見学", Note: "two people",
	})

	// THEN: id 1, trimmed fields, createdAt from the clock
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	rows, err := res.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ACME", rows[0].CompanyName)
	assert.Equal(t, "2025-03-12", rows[0].Date)
	assert.True(t, fixedNow.Equal(rows[0].CreatedAt))

	// AND: exactly one BOM in the file
	data, err := os.ReadFile(disk.Path(ReservationsFile))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, record.FileHeaderPrefix()))
}

func TestReservations_IDsAreSequential(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)

	for i := 1; i <= 5; i++ {
		id, err := res.Create(ctx, newReservation("c", "2025-03-12"))
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
}

func TestReservations_DeletedMaxIDIsReused(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)

	// GIVEN: ids 1, 2, 3
	for i := 0; i < 3; i++ {
		_, err := res.Create(ctx, newReservation("c", "2025-03-12"))
		require.NoError(t, err)
	}

	// WHEN: 3 is deleted and a new reservation is created
	require.NoError(t, res.Delete(ctx, 3))
	id, err := res.Create(ctx, newReservation("d", "2025-03-13"))

	// THEN: 3 is handed out again
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestReservations_LiteralDeleteOfLowerIDGetsMaxPlusOne(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)

	// GIVEN: ids 1 and 2
	for i := 0; i < 2; i++ {
		_, err := res.Create(ctx, newReservation("c", "2025-03-12"))
		require.NoError(t, err)
	}

	// WHEN: 1 is deleted and a new reservation is created
	require.NoError(t, res.Delete(ctx, 1))
	id, err := res.Create(ctx, newReservation("d", "2025-03-13"))

	// THEN: allocation is max+1, so the freed 1 is not reused
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestReservations_RewriteKeepsSpreadsheetTimestamps(t *testing.T) {
	ctx := context.Background()

	// GIVEN: A file re-saved by a spreadsheet, plus a free-text created_at
	mem := NewMemory()
	mem.Put(ReservationsFile, []byte("\ufeffID,日付,時間,企業名,連絡先,匿名,カテゴリ,備考,作成日時\n"+
		"1,2025-03-12,午前,A,,いいえ,見学,,2025/03/01 9:00\n"+
		"2,2025-03-13,午後,B,,いいえ,見学,,2025/03/02 10:00\n"+
		"3,2025-03-14,午後,C,,いいえ,見学,,先月\n"))
	res := NewReservations(mem, ReservationsFile, testOptions())

	// WHEN: Only row 1 is updated
	note := "x"
	require.NoError(t, res.Update(ctx, 1, booking.ReservationPatch{Note: &note}))

	// THEN: Every row keeps its creation time
	rows, err := res.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].CreatedAt.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, jst)))
	assert.True(t, rows[1].CreatedAt.Equal(time.Date(2025, 3, 2, 10, 0, 0, 0, jst)))
	assert.Equal(t, "先月", rows[2].CreatedAtText)

	data, err := mem.ReadFile(ReservationsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",x,2025-03-01 09:00:00\n")
	assert.Contains(t, string(data), ",2025-03-02 10:00:00\n")
	assert.Contains(t, string(data), ",先月\n")
}

func TestReservations_CreateValidation(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)

	_, err := res.Create(ctx, booking.NewReservation{Name: " ", Date: "2025-03-12"})

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"name", "time", "category"}, verr.Missing)

	rows, err := res.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReservations_UpdateAppliesPresentFieldsOnly(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)
	_, err := res.Create(ctx, newReservation("a", "2025-03-12"))
	require.NoError(t, err)
	_, err = res.Create(ctx, newReservation("b", "2025-03-13"))
	require.NoError(t, err)
	before, err := res.List(ctx)
	require.NoError(t, err)

	note := " updated "
	require.NoError(t, res.Update(ctx, 1, booking.ReservationPatch{Note: &note}))

	after, err := res.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, 1, after[0].ID, "order preserved")
	assert.Equal(t, "updated", after[0].Note)
	assert.Equal(t, before[0].Date, after[0].Date)
	assert.Equal(t, before[0].Time, after[0].Time)
	assert.True(t, before[0].CreatedAt.Equal(after[0].CreatedAt))
	assert.Equal(t, "b", after[1].CompanyName)
}

func TestReservations_UpdateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)
	_, err := res.Create(ctx, newReservation("a", "2025-03-12"))
	require.NoError(t, err)

	bad := "2025/03/12"
	err = res.Update(ctx, 1, booking.ReservationPatch{Date: &bad})
	assert.ErrorIs(t, err, booking.ErrValidation)

	err = res.Update(ctx, 0, booking.ReservationPatch{})
	assert.ErrorIs(t, err, booking.ErrValidation)

	err = res.Update(ctx, 42, booking.ReservationPatch{})
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestReservations_DeleteMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)
	_, err := res.Create(ctx, newReservation("a", "2025-03-12"))
	require.NoError(t, err)

	err = res.Delete(ctx, 7)

	assert.ErrorIs(t, err, booking.ErrNotFound)
	rows, err := res.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReservations_CrashBeforeRenameKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	disk, res, _ := newDiskStores(t)
	_, err := res.Create(ctx, newReservation("a", "2025-03-12"))
	require.NoError(t, err)
	original, err := os.ReadFile(disk.Path(ReservationsFile))
	require.NoError(t, err)

	// GIVEN: the process dies between writing the temp file and renaming it
	disk.beforeRename = func(string) error { return errors.New("crash") }

	// WHEN
	err = res.Delete(ctx, 1)

	// THEN: storage error, and the live file is byte-identical
	assert.ErrorIs(t, err, booking.ErrStorageIO)
	current, err := os.ReadFile(disk.Path(ReservationsFile))
	require.NoError(t, err)
	assert.Equal(t, original, current)

	entries, err := os.ReadDir(disk.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{ReservationsFile, ReservationsFile + ".lock"}, names, "temp file cleaned up")
}

func TestReservations_TruncatedTailIsDroppedAndTerminated(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	res := NewReservations(mem, ReservationsFile, testOptions())
	_, err := res.Create(ctx, newReservation("a", "2025-03-12"))
	require.NoError(t, err)

	// GIVEN: a crash left half a row behind
	require.NoError(t, mem.Append(ReservationsFile, []byte("2,2025-03-1")))

	// WHEN
	id, err := res.Create(ctx, newReservation("b", "2025-03-14"))

	// THEN: the partial row is ignored and the new row is intact
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	rows, err := res.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].CompanyName)
	assert.Equal(t, "2025-03-14", rows[1].Date)
}

func TestReservations_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	_, res, _ := newDiskStores(t)

	const n = 20
	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := res.Create(ctx, newReservation("c", "2025-03-12"))
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestReservations_ReservedDatesSkipsLegacyText(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Put(ReservationsFile, []byte("ID,日付,時間,企業名,連絡先,匿名,カテゴリ,備考,作成日時\n"+
		"1,2025-03-12,午前,A,,いいえ,見学,,\n"+
		"2,来週,午後,B,,いいえ,見学,,\n"))
	res := NewReservations(mem, ReservationsFile, testOptions())

	set, err := res.ReservedDates(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Contains(booking.NewDate(2025, time.March, 12)))
}

func TestReservations_StorageFailureSurfaces(t *testing.T) {
	mem := NewMemory()
	mem.Fail = func(op, _ string) error {
		if op == "read" {
			return errors.New("disk gone")
		}
		return nil
	}
	res := NewReservations(mem, ReservationsFile, testOptions())

	_, err := res.List(context.Background())

	assert.ErrorIs(t, err, booking.ErrStorageIO)
	assert.True(t, booking.IsRetryable(err))
}

// =============================================================================
// BLOCKED DATES
// =============================================================================

func TestBlockedDates_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, _, blocked := newDiskStores(t)

	require.NoError(t, blocked.Add(ctx, "2025-03-20", "休業日"))
	require.NoError(t, blocked.Add(ctx, "2025-03-20", "other"))

	rows, err := blocked.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "休業日", rows[0].Reason)
	assert.True(t, fixedNow.Equal(rows[0].CreatedAt))
}

func TestBlockedDates_AddCollapsesDuplicates(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Put(BlockedDatesFile, []byte("date\n2025-03-20\n2025-03-20\n"))
	blocked := NewBlockedDates(mem, BlockedDatesFile, testOptions())

	require.NoError(t, blocked.Add(ctx, "2025-03-21", ""))

	rows, err := blocked.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-20", rows[0].Date)
	assert.Equal(t, "2025-03-21", rows[1].Date)
}

func TestBlockedDates_RemoveAbsentSucceeds(t *testing.T) {
	ctx := context.Background()
	_, _, blocked := newDiskStores(t)
	require.NoError(t, blocked.Add(ctx, "2025-03-20", ""))

	require.NoError(t, blocked.Remove(ctx, "2025-04-01"))
	require.NoError(t, blocked.Remove(ctx, "2025-03-20"))
	require.NoError(t, blocked.Remove(ctx, "2025-03-20"))

	rows, err := blocked.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBlockedDates_RejectMalformedDates(t *testing.T) {
	ctx := context.Background()
	_, _, blocked := newDiskStores(t)

	assert.ErrorIs(t, blocked.Add(ctx, "20-03-2025", ""), booking.ErrValidation)
	assert.ErrorIs(t, blocked.Remove(ctx, "tomorrow"), booking.ErrValidation)
}

func TestBlockedDates_Dates(t *testing.T) {
	ctx := context.Background()
	_, _, blocked := newDiskStores(t)
	require.NoError(t, blocked.Add(ctx, "2025-03-20", ""))
	require.NoError(t, blocked.Add(ctx, "2025-03-21", ""))

	set, err := blocked.Dates(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(booking.NewDate(2025, time.March, 21)))
}

// =============================================================================
// CREDENTIALS
// =============================================================================

func TestCredentials_Defaults(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	creds := NewCredentials(disk, CredentialsFile, Options{})

	ok, err := creds.Verify(ctx, booking.RoleAdmin, "admin123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = creds.Verify(ctx, booking.RoleUser, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := creds.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[booking.Role]string{booking.RoleAdmin: "admin", booking.RoleUser: "user"}, ids)

	_, err = os.Stat(disk.Path(CredentialsFile))
	assert.NoError(t, err, "file created on first read")
}

func TestCredentials_UnknownRole(t *testing.T) {
	creds := NewCredentials(NewMemory(), CredentialsFile, Options{})

	_, err := creds.Verify(context.Background(), booking.Role("root"), "x")

	assert.ErrorIs(t, err, booking.ErrUnknownRole)
}

func TestCredentials_PaddedRoleUsesTrimmedKey(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	creds := NewCredentials(mem, CredentialsFile, Options{})

	// GIVEN: A padded role string
	padded := booking.Role(" admin")

	// THEN: It resolves to admin, never to an empty credential
	c, err := creds.Get(ctx, padded)
	require.NoError(t, err)
	assert.Equal(t, "admin", c.ID)

	ok, err := creds.Verify(ctx, padded, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// AND: Writes land on the real key
	require.NoError(t, creds.SetPassword(ctx, padded, "n3w"))
	data, err := mem.ReadFile(CredentialsFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `" admin"`)
	ok, err = creds.Verify(ctx, booking.RoleAdmin, "n3w")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentials_MissingRoleGetsDefault(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Put(CredentialsFile, []byte(`{"admin":{"id":"boss","password":"s3cret"}}`))
	creds := NewCredentials(mem, CredentialsFile, Options{})

	admin, err := creds.Get(ctx, booking.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "boss", admin.ID)

	user, err := creds.Get(ctx, booking.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, booking.DefaultCredential(booking.RoleUser), user)
}

func TestCredentials_SetPasswordAndID(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentials(NewMemory(), CredentialsFile, Options{})

	require.NoError(t, creds.SetPassword(ctx, booking.RoleUser, "n3w"))
	require.NoError(t, creds.SetID(ctx, booking.RoleUser, " staff "))

	ok, err := creds.Verify(ctx, booking.RoleUser, "n3w")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = creds.Verify(ctx, booking.RoleUser, "user123")
	require.NoError(t, err)
	assert.False(t, ok)

	user, err := creds.Get(ctx, booking.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "staff", user.ID)

	assert.ErrorIs(t, creds.SetPassword(ctx, booking.RoleAdmin, ""), booking.ErrValidation)
}

func TestCredentials_CorruptFileIsStorageError(t *testing.T) {
	mem := NewMemory()
	mem.Put(CredentialsFile, []byte("{not json"))
	creds := NewCredentials(mem, CredentialsFile, Options{})

	_, err := creds.Verify(context.Background(), booking.RoleAdmin, "admin123")

	assert.ErrorIs(t, err, booking.ErrStorageIO)
}

// =============================================================================
// STAFF MAIL LIST
// =============================================================================

func TestStaffEmails_AddIsIdempotentByAddress(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	staff := NewStaffEmails(disk, StaffEmailsFile, Options{})

	require.NoError(t, staff.Add(ctx, booking.StaffContact{Name: " 田中 ", Email: " tanaka@example.com "}))
	require.NoError(t, staff.Add(ctx, booking.StaffContact{Name: "別名", Email: "Tanaka@Example.com"}))

	rows, err := staff.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []booking.StaffContact{{Name: "田中", Email: "tanaka@example.com"}}, rows)

	data, err := os.ReadFile(disk.Path(StaffEmailsFile))
	require.NoError(t, err)
	assert.Equal(t, "\ufeff名前,メールアドレス\n田中,tanaka@example.com\n", string(data))
}

func TestStaffEmails_AddValidation(t *testing.T) {
	staff := NewStaffEmails(NewMemory(), StaffEmailsFile, Options{})

	err := staff.Add(context.Background(), booking.StaffContact{Name: "x", Email: "nope"})

	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email"}, verr.Invalid)

	err = staff.Add(context.Background(), booking.StaffContact{Email: "a@example.com"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name"}, verr.Missing)
}

func TestStaffEmails_RemoveDropsEveryMatchingRow(t *testing.T) {
	ctx := context.Background()

	// GIVEN: A hand-edited list with a repeat and a bad address
	mem := NewMemory()
	mem.Put(StaffEmailsFile, []byte("name,email\n"+
		"田中,tanaka@example.com\n"+
		"鈴木,suzuki@example.com\n"+
		"田中,TANAKA@example.com\n"+
		"誰か,not-an-address\n"+
		"空,\n"))
	staff := NewStaffEmails(mem, StaffEmailsFile, Options{})

	addrs, err := staff.Addresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tanaka@example.com", "suzuki@example.com"}, addrs)

	// WHEN
	require.NoError(t, staff.Remove(ctx, "tanaka@example.com"))
	require.NoError(t, staff.Remove(ctx, "nobody@example.com"))

	// THEN
	rows, err := staff.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []booking.StaffContact{
		{Name: "鈴木", Email: "suzuki@example.com"},
		{Name: "誰か", Email: "not-an-address"},
	}, rows)

	assert.ErrorIs(t, staff.Remove(ctx, " "), booking.ErrValidation)
}

func TestStaffEmails_FailedRewriteKeepsFile(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	staff := NewStaffEmails(mem, StaffEmailsFile, Options{})
	require.NoError(t, staff.Add(ctx, booking.StaffContact{Name: "a", Email: "a@example.com"}))
	before, err := mem.ReadFile(StaffEmailsFile)
	require.NoError(t, err)

	mem.Fail = func(op, _ string) error {
		if op == "replace" {
			return errors.New("disk full")
		}
		return nil
	}

	assert.ErrorIs(t, staff.Remove(ctx, "a@example.com"), booking.ErrStorageIO)
	after, err := mem.ReadFile(StaffEmailsFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
