package comments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "acme"

type fixture struct {
	store  *memStore
	svc    *Service
	worker Caller
	admin  Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	workerID := store.addWorker("Wendy Worker")
	return &fixture{
		store:  store,
		svc:    NewService(store, zerolog.Nop()),
		worker: Caller{ID: workerID, Role: models.RoleWorker, Subdomain: tenant, Name: "Wendy Worker"},
		admin:  Caller{ID: uuid.New(), Role: models.RoleAdmin, Subdomain: tenant, Name: "Ada Admin"},
	}
}

func (f *fixture) create(t *testing.T, text string) *models.Comment {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{Text: text, Subdomain: tenant})
	require.NoError(t, err)
	return c
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  models.CreateCommentRequest
	}{
		{"empty text", models.CreateCommentRequest{Text: "", Subdomain: tenant}},
		{"whitespace text", models.CreateCommentRequest{Text: "   ", Subdomain: tenant}},
		{"missing subdomain", models.CreateCommentRequest{Text: "hello"}},
		{"main subdomain", models.CreateCommentRequest{Text: "x", Subdomain: models.MainSubdomain}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), f.worker, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Empty(t, f.store.comments, "nothing must be persisted")
		})
	}
}

func TestCreate_ReturnsJoinedComment(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")

	assert.Equal(t, "Need help", c.Text)
	assert.Equal(t, tenant, c.Subdomain)
	assert.True(t, c.IsNew)
	assert.False(t, c.HasUnreadAdminReply)
	require.NotNil(t, c.Worker)
	assert.Equal(t, "Wendy Worker", c.Worker.Name)
	assert.Equal(t, "Support", c.Worker.Department.Name)
	assert.Empty(t, c.Replies)
}

func TestCreate_RoleAndTenantGuard(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.admin, models.CreateCommentRequest{Text: "hi", Subdomain: tenant})
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{Text: "hi", Subdomain: "globex"})
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Empty(t, f.store.comments)
}

func TestCreate_PersistenceFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.store.failWith = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{Text: "hi", Subdomain: tenant})
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Failed to create comment", Message(err))
}

func TestCreate_AttachmentInline(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{
		Text:       "see file",
		Subdomain:  tenant,
		Attachment: &models.AttachmentInput{Name: "../shift.pdf", Type: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	require.NotNil(t, c.Attachment)
	assert.Equal(t, "shift.pdf", c.Attachment.Name)
	assert.EqualValues(t, 4, c.Attachment.Size)

	att, err := f.svc.Attachment(context.Background(), f.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), att.Data)
}

func TestCreate_AttachmentObjectStore(t *testing.T) {
	f := newFixture(t)
	objects := &memAttachments{}
	f.svc.WithAttachmentStore(objects)

	c, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{
		Text:       "photo",
		Subdomain:  tenant,
		Attachment: &models.AttachmentInput{Name: "a.png", Type: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	require.Len(t, objects.objects, 1)
	assert.Nil(t, f.store.comments[c.ID].Attachment.Data, "bytes must not be kept in the row")

	att, err := f.svc.Attachment(context.Background(), f.worker, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, att.Data)
}

func TestCreate_AttachmentValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{
		Text:       "x",
		Subdomain:  tenant,
		Attachment: &models.AttachmentInput{Name: "big.bin", Data: make([]byte, MaxAttachmentBytes+1)},
	})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{
		Text:       "x",
		Subdomain:  tenant,
		Attachment: &models.AttachmentInput{Name: "empty.txt"},
	})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, f.store.comments)
}

func TestAddReply_AdminSetsUnreadFlag(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")
	before := time.Now()

	updated, err := f.svc.AddReply(context.Background(), f.admin, c.ID, "On it")
	require.NoError(t, err)

	require.Len(t, updated.Replies, 1)
	r := updated.Replies[0]
	assert.True(t, r.IsAdminReply)
	assert.True(t, r.IsNew)
	assert.Equal(t, tenant, r.Subdomain)
	assert.True(t, updated.HasUnreadAdminReply)
	assert.True(t, updated.IsNew)
	require.NotNil(t, updated.LastReplyTimestamp)
	assert.False(t, updated.LastReplyTimestamp.Before(before))
}

func TestAddReply_WorkerDoesNotSetUnreadFlag(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")
	_, err := f.svc.MarkRead(context.Background(), f.admin, c.ID)
	require.NoError(t, err)

	updated, err := f.svc.AddReply(context.Background(), f.worker, c.ID, "any update?")
	require.NoError(t, err)

	require.Len(t, updated.Replies, 1)
	assert.False(t, updated.Replies[0].IsAdminReply)
	assert.False(t, updated.HasUnreadAdminReply)
	assert.Nil(t, updated.LastReplyTimestamp)
	assert.True(t, updated.IsNew, "any reply marks the comment new")
}

func TestTextStoredAsSent(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "  Need help \n")
	assert.Equal(t, "  Need help \n", c.Text)

	updated, err := f.svc.AddReply(context.Background(), f.admin, c.ID, " On it ")
	require.NoError(t, err)
	require.Len(t, updated.Replies, 1)
	assert.Equal(t, " On it ", updated.Replies[0].Text)
}

func TestAddReply_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")

	_, err := f.svc.AddReply(context.Background(), f.admin, c.ID, " ")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.AddReply(context.Background(), f.admin, uuid.New(), "hello")
	assert.Equal(t, KindNotFound, KindOf(err))

	foreign := f.admin
	foreign.Subdomain = "globex"
	_, err = f.svc.AddReply(context.Background(), foreign, c.ID, "hello")
	assert.Equal(t, KindNotFound, KindOf(err))

	other := Caller{ID: f.store.addWorker("Other"), Role: models.RoleWorker, Subdomain: tenant}
	_, err = f.svc.AddReply(context.Background(), other, c.ID, "hello")
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.Empty(t, f.store.comments[c.ID].Replies)
}

func TestMarkRead_ClearsCommentAndAllReplies(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")
	_, err := f.svc.AddReply(context.Background(), f.admin, c.ID, "On it")
	require.NoError(t, err)
	_, err = f.svc.AddReply(context.Background(), f.worker, c.ID, "thanks")
	require.NoError(t, err)

	updated, err := f.svc.MarkRead(context.Background(), f.worker, c.ID)
	require.NoError(t, err)

	assert.False(t, updated.IsNew)
	for _, r := range updated.Replies {
		assert.False(t, r.IsNew)
	}
	assert.False(t, updated.HasUnreadAdminReply)

	_, err = f.svc.MarkRead(context.Background(), f.worker, uuid.New())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMarkCommentAdminRepliesRead_LeavesWorkerReplies(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Need help")
	_, err := f.svc.AddReply(context.Background(), f.worker, c.ID, "more detail")
	require.NoError(t, err)
	_, err = f.svc.AddReply(context.Background(), f.admin, c.ID, "On it")
	require.NoError(t, err)

	updated, err := f.svc.MarkCommentAdminRepliesRead(context.Background(), f.worker, c.ID)
	require.NoError(t, err)

	assert.False(t, updated.HasUnreadAdminReply)
	for _, r := range updated.Replies {
		if r.IsAdminReply {
			assert.False(t, r.IsNew, "admin reply must be read")
		} else {
			assert.True(t, r.IsNew, "worker reply must be untouched")
		}
	}

	_, err = f.svc.MarkCommentAdminRepliesRead(context.Background(), f.worker, uuid.New())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMarkAllAdminRepliesRead(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "first")
	b := f.create(t, "second")
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := f.svc.AddReply(context.Background(), f.admin, id, "ack")
		require.NoError(t, err)
	}

	unread, err := f.svc.ListUnreadAdminReplies(context.Background(), f.worker)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err := f.svc.MarkAllAdminRepliesRead(context.Background(), f.worker)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err = f.svc.ListUnreadAdminReplies(context.Background(), f.worker)
	require.NoError(t, err)
	assert.Empty(t, unread)

	n, err = f.svc.MarkAllAdminRepliesRead(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListByTenant(t *testing.T) {
	f := newFixture(t)
	f.create(t, "hello")

	_, err := f.svc.ListByTenant(context.Background(), f.admin, models.MainSubdomain)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.ListByTenant(context.Background(), f.admin, "")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.ListByTenant(context.Background(), f.admin, "globex")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.ListByTenant(context.Background(), f.worker, tenant)
	assert.Equal(t, KindForbidden, KindOf(err))

	// Role is checked before the tenant is validated.
	_, err = f.svc.ListByTenant(context.Background(), f.worker, models.MainSubdomain)
	assert.Equal(t, KindForbidden, KindOf(err))

	list, err := f.svc.ListByTenant(context.Background(), f.admin, tenant)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListByTenant_OrphanedCommentGetsPlaceholder(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "before I left")
	f.store.deleteWorker(f.worker.ID)

	list, err := f.svc.ListByTenant(context.Background(), f.admin, tenant)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
	require.NotNil(t, list[0].Worker)
	assert.Equal(t, models.UnknownWorkerName, list[0].Worker.Name)
	assert.Equal(t, models.UnassignedDepartment, list[0].Worker.Department.Name)
}

func TestListByWorker_NewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-time.Hour)
	older := f.store.seed(f.worker.ID, tenant, "older", base)
	newer := f.store.seed(f.worker.ID, tenant, "newer", base.Add(time.Minute))
	f.store.seed(f.store.addWorker("Else"), tenant, "unrelated", base.Add(2*time.Minute))

	list, err := f.svc.ListByWorker(context.Background(), f.admin, f.worker.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	_, err = f.svc.ListByWorker(context.Background(), f.worker, f.worker.ID)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestListMine_OnlyOwnComments(t *testing.T) {
	f := newFixture(t)
	f.create(t, "mine")
	f.store.seed(f.store.addWorker("Else"), tenant, "theirs", time.Now())

	list, err := f.svc.ListMine(context.Background(), f.worker)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Text)

	_, err = f.svc.ListMine(context.Background(), f.admin)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestEndToEnd_NeedHelpFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.worker, models.CreateCommentRequest{Text: "Need help", Subdomain: tenant})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.worker)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsNew)

	replied, err := f.svc.AddReply(ctx, f.admin, created.ID, "On it")
	require.NoError(t, err)
	require.Len(t, replied.Replies, 1)
	assert.True(t, replied.Replies[0].IsAdminReply)
	assert.True(t, replied.HasUnreadAdminReply)

	read, err := f.svc.MarkCommentAdminRepliesRead(ctx, f.worker, created.ID)
	require.NoError(t, err)
	assert.False(t, read.HasUnreadAdminReply)
	assert.False(t, read.Replies[0].IsNew)
}

func TestEndToEnd_MainSubdomainRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.worker, models.CreateCommentRequest{Text: "x", Subdomain: "main"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	mine, err := f.svc.ListMine(context.Background(), f.worker)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestErrorMatching(t *testing.T) {
	err := notFound("Comment not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Comment not found", Message(err))
	assert.Equal(t, "internal server error", Message(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "not_found", KindNotFound.String())
}

type countingRecorder struct {
	created int
	replies map[models.Role]int
	reads   []string
}

func (r *countingRecorder) CommentCreated() { r.created++ }

func (r *countingRecorder) ReplyAdded(role models.Role) {
	if r.replies == nil {
		r.replies = make(map[models.Role]int)
	}
	r.replies[role]++
}

func (r *countingRecorder) MarkedRead(kind string) { r.reads = append(r.reads, kind) }

func TestRecorderReceivesEvents(t *testing.T) {
	f := newFixture(t)
	rec := &countingRecorder{}
	f.svc.WithRecorder(rec)
	ctx := context.Background()

	c := f.create(t, "hello")
	_, err := f.svc.AddReply(ctx, f.admin, c.ID, "hi")
	require.NoError(t, err)
	_, err = f.svc.MarkCommentAdminRepliesRead(ctx, f.worker, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.worker, models.CreateCommentRequest{Subdomain: tenant})
	require.Error(t, err)

	assert.Equal(t, 1, rec.created)
	assert.Equal(t, 1, rec.replies[models.RoleAdmin])
	assert.Equal(t, []string{"comment_admin_replies"}, rec.reads)
}
