package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybermed/agent/internal/domain"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second pool connection would see a fresh in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func seedDocument(t *testing.T, repo *DocumentsRepository, docID string) *domain.Document {
	t.Helper()

	doc := &domain.Document{
		DocID:        docID,
		URL:          "https://example.com/" + docID,
		Title:        "Guidance " + docID,
		Content:      "Device manufacturers shall implement access control.",
		SourceType:   domain.SourceTypeHTML,
		Lang:         "en",
		DownloadedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Upsert(context.Background(), doc))
	require.NotZero(t, doc.ID)
	return doc
}

func TestDocumentsRepository_UpsertAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewDocumentsRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, repo, "doc-a")

	got, err := repo.GetByDocID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.URL, got.URL)
	assert.Equal(t, doc.Content, got.Content)

	// Second upsert with the same doc_id must refresh, not duplicate.
	doc.Title = "Guidance doc-a (rev 2)"
	doc.Content = "Revised control text."
	require.NoError(t, repo.Upsert(ctx, doc))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err = repo.GetByDocID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "Guidance doc-a (rev 2)", got.Title)
	assert.Equal(t, "Revised control text.", got.Content)
}

func TestDocumentsRepository_GetByDocID_NotFound(t *testing.T) {
	repo := NewDocumentsRepository(testDB(t))

	_, err := repo.GetByDocID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentsRepository_GetManyByDocIDs(t *testing.T) {
	db := testDB(t)
	repo := NewDocumentsRepository(db)
	ctx := context.Background()

	seedDocument(t, repo, "doc-a")
	seedDocument(t, repo, "doc-b")
	seedDocument(t, repo, "doc-c")

	// Order preserved, duplicates collapsed, unknown ids skipped.
	docs, err := repo.GetManyByDocIDs(ctx, []string{"doc-c", "doc-a", "doc-c", "missing"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-c", docs[0].DocID)
	assert.Equal(t, "doc-a", docs[1].DocID)
}

func TestDocumentsRepository_ListUnclassified(t *testing.T) {
	db := testDB(t)
	docs := NewDocumentsRepository(db)
	results := NewClassificationsRepository(db)
	ctx := context.Background()

	a := seedDocument(t, docs, "doc-a")
	seedDocument(t, docs, "doc-b")

	require.NoError(t, results.SaveResult(ctx, &domain.ClassificationResult{
		DocumentID: a.ID,
		UserID:     1,
		ResultJSON: `{}`,
		CreatedAt:  time.Now().UTC(),
	}))

	unclassified, err := docs.ListUnclassified(ctx)
	require.NoError(t, err)
	require.Len(t, unclassified, 1)
	assert.Equal(t, "doc-b", unclassified[0].DocID)
}

func TestDocumentsRepository_ListWithClassificationFlag(t *testing.T) {
	db := testDB(t)
	docs := NewDocumentsRepository(db)
	results := NewClassificationsRepository(db)
	ctx := context.Background()

	a := seedDocument(t, docs, "doc-a")
	seedDocument(t, docs, "doc-b")

	require.NoError(t, results.SaveResult(ctx, &domain.ClassificationResult{
		DocumentID: a.ID,
		UserID:     1,
		ResultJSON: `{}`,
		CreatedAt:  time.Now().UTC(),
	}))

	infos, err := docs.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos[0].IsClassified)
	assert.False(t, infos[1].IsClassified)
}

func TestDocumentsRepository_Delete(t *testing.T) {
	db := testDB(t)
	docs := NewDocumentsRepository(db)
	results := NewClassificationsRepository(db)
	ctx := context.Background()

	a := seedDocument(t, docs, "doc-a")
	require.NoError(t, results.SaveResult(ctx, &domain.ClassificationResult{
		DocumentID: a.ID,
		UserID:     1,
		ResultJSON: `{}`,
		CreatedAt:  time.Now().UTC(),
	}))

	require.NoError(t, docs.Delete(ctx, "doc-a"))

	_, err := docs.GetByDocID(ctx, "doc-a")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = results.LatestForDocument(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, docs.Delete(ctx, "doc-a"), ErrNotFound)
}

func TestClassificationsRepository_LatestPerDocument(t *testing.T) {
	db := testDB(t)
	docs := NewDocumentsRepository(db)
	results := NewClassificationsRepository(db)
	ctx := context.Background()

	a := seedDocument(t, docs, "doc-a")
	b := seedDocument(t, docs, "doc-b")

	for i, docID := range []int64{a.ID, a.ID, b.ID} {
		require.NoError(t, results.SaveResult(ctx, &domain.ClassificationResult{
			DocumentID: docID,
			UserID:     1,
			ResultJSON: fmt.Sprintf(`{"n":%d}`, i),
			CreatedAt:  time.Now().UTC(),
		}))
	}

	latest, err := results.LatestForDocument(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, latest.ResultJSON)

	all, err := results.ListLatest(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "doc-a", all[0].DocID)
	assert.Equal(t, `{"n":1}`, all[0].ResultJSON)
	assert.Equal(t, "doc-b", all[1].DocID)

	classified, err := results.CountClassified(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, classified)
}

func TestGuidelinesRepository_CreateAndFilter(t *testing.T) {
	db := testDB(t)
	repo := NewGuidelinesRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Guideline{
		GuidelineID: "NIST-PR-AC-1",
		Category:    "PR",
		Standard:    "NIST_CSF",
		ControlText: "Identities and credentials are managed for authorized devices.",
		Region:      "US",
		Keywords:    []string{"access control", "credentials", ""},
	}))
	require.NoError(t, repo.Create(ctx, &domain.Guideline{
		GuidelineID: "IEC-FR1-1",
		Category:    "FR1",
		Standard:    "IEC_62443",
		ControlText: "Identification and authentication of all users.",
		Region:      "EU",
		Keywords:    []string{"authentication"},
	}))

	all, err := repo.List(ctx, domain.GuidelineFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"access control", "credentials"}, all[0].Keywords)

	nist, err := repo.List(ctx, domain.GuidelineFilter{Standard: "NIST_CSF"})
	require.NoError(t, err)
	require.Len(t, nist, 1)
	assert.Equal(t, "NIST-PR-AC-1", nist[0].GuidelineID)

	matched, err := repo.List(ctx, domain.GuidelineFilter{Query: "authentication"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "IEC-FR1-1", matched[0].GuidelineID)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"FR1", "PR"}, categories)

	standards, err := repo.Standards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"IEC_62443", "NIST_CSF"}, standards)

	keywords, err := repo.AllKeywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"access control", "authentication", "credentials"}, keywords)
}

func TestInsertsReturnGeneratedIDs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	documents := NewDocumentsRepository(db)
	results := NewClassificationsRepository(db)
	guidelines := NewGuidelinesRepository(db)
	users := NewUsersRepository(db)

	doc := seedDocument(t, documents, "doc-ids")

	result := &domain.ClassificationResult{
		DocumentID: doc.ID,
		UserID:     1,
		ResultJSON: `{"n":1}`,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, results.SaveResult(ctx, result))
	assert.NotZero(t, result.ID)

	g := &domain.Guideline{
		GuidelineID: "NIST-DE-CM-1",
		Category:    "DE",
		Standard:    "NIST_CSF",
		ControlText: "The network is monitored to detect potential cybersecurity events.",
		Keywords:    []string{"monitoring"},
	}
	require.NoError(t, guidelines.Create(ctx, g))
	require.NotZero(t, g.ID)

	// Keywords must link to the generated guideline id, not a zero value.
	var linked []string
	require.NoError(t, db.SelectContext(ctx, &linked,
		db.Rebind(`SELECT keyword FROM guideline_keywords WHERE guideline_id = ?`), g.ID))
	assert.Equal(t, []string{"monitoring"}, linked)

	user := &domain.User{
		Username:       "id-check",
		HashedPassword: "$2a$10$notarealhash",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, users.Create(ctx, user))
	assert.NotZero(t, user.ID)
}

func TestUsersRepository_CRUD(t *testing.T) {
	db := testDB(t)
	repo := NewUsersRepository(db)
	ctx := context.Background()

	user := &domain.User{
		Username:       "analyst",
		HashedPassword: "$2a$10$notarealhash",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	got, err := repo.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, got.IsAdmin)

	require.NoError(t, repo.SetAdmin(ctx, user.ID, true))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.ErrorIs(t, repo.SetAdmin(ctx, 9999, true), ErrNotFound)

	_, err = repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
