package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/oselyuk/boardmate/internal/cache"
	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/providers/devops"
	"github.com/oselyuk/boardmate/internal/relevance"
	pgrepo "github.com/oselyuk/boardmate/internal/repositories/postgres"
	"github.com/oselyuk/boardmate/internal/utils"
)

const workItemCacheTTL = 5 * time.Minute

type WorkItemService interface {
	Sync(ctx context.Context, project string) (int, error)
	Get(ctx context.Context, adoID int) (*models.WorkItem, error)
	FindRelated(ctx context.Context, text string, limit int) ([]models.RelatedWorkItem, error)
}

type workItemService struct {
	repo     pgrepo.WorkItemRepository
	ado      *devops.Client
	embedder relevance.EmbeddingClient
	cache    cache.Cache
	log      *logrus.Logger
}

func NewWorkItemService(repo pgrepo.WorkItemRepository, ado *devops.Client, embedder relevance.EmbeddingClient, c cache.Cache, log *logrus.Logger) WorkItemService {
	return &workItemService{repo: repo, ado: ado, embedder: embedder, cache: c, log: log}
}

// Sync pulls recently changed work items for a project, embeds their titles
// and descriptions for the related-item index, and upserts them. Items whose
// embedding fails are still stored; they just never match a vector search.
func (s *workItemService) Sync(ctx context.Context, project string) (int, error) {
	const op = "WorkItemService.Sync"

	if project == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "project is required", nil)
	}

	wiql := fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = '%s' AND [System.ChangedDate] >= @Today - 30 ORDER BY [System.ChangedDate] DESC",
		strings.ReplaceAll(project, "'", ""))
	ids, err := s.ado.QueryWorkItemIDs(ctx, project, wiql)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "wiql query failed", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	raw, err := s.ado.GetWorkItems(ctx, ids)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "work item fetch failed", err)
	}

	texts := make([]string, 0, len(raw))
	for _, wi := range raw {
		texts = append(texts, workItemText(wi))
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.log.WithError(err).Warn("work item embedding failed, syncing without vectors")
		vectors = nil
	}

	now := time.Now().UTC()
	items := make([]models.WorkItem, 0, len(raw))
	for i, wi := range raw {
		item := models.WorkItem{
			ID:           uuid.NewString(),
			ADOID:        wi.ID,
			Organization: s.ado.Organization(),
			Project:      project,
			Type:         wi.StringField("System.WorkItemType"),
			Title:        wi.StringField("System.Title"),
			State:        wi.StringField("System.State"),
			AssignedTo:   wi.IdentityField("System.AssignedTo"),
			Severity:     wi.StringField("Microsoft.VSTS.Common.Severity"),
			CreatedDate:  wi.TimeField("System.CreatedDate"),
			ChangedDate:  wi.TimeField("System.ChangedDate"),
			SyncedAt:     now,
		}
		if due := wi.TimeField("Microsoft.VSTS.Scheduling.DueDate"); !due.IsZero() {
			item.DueAt = &due
		}
		if vec, ok := vectors[texts[i]]; ok && len(vec) > 0 {
			item.Embedding = pgvector.NewVector(vec)
		}
		if blob, err := wi.FieldsJSON(); err == nil {
			item.Fields = datatypes.JSON(blob)
		}
		items = append(items, item)
	}

	if err := s.repo.Upsert(ctx, items); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to upsert work items", err)
	}
	return len(items), nil
}

func (s *workItemService) Get(ctx context.Context, adoID int) (*models.WorkItem, error) {
	const op = "WorkItemService.Get"

	if adoID <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "work item id must be > 0", nil)
	}

	key := fmt.Sprintf("workitem:%s:%d", s.ado.Organization(), adoID)
	var cached models.WorkItem
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	item, err := s.repo.GetByADOID(ctx, s.ado.Organization(), adoID)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "work item not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load work item", err)
	}

	_ = s.cache.SetJSON(ctx, key, item, workItemCacheTTL)
	return item, nil
}

func (s *workItemService) FindRelated(ctx context.Context, text string, limit int) ([]models.RelatedWorkItem, error) {
	const op = "WorkItemService.FindRelated"

	if strings.TrimSpace(text) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "text is required", nil)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to embed query", err)
	}

	rows, err := s.repo.SearchRelated(ctx, vec, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "vector search failed", err)
	}
	return rows, nil
}

func workItemText(wi devops.WorkItem) string {
	title := wi.StringField("System.Title")
	desc := wi.StringField("System.Description")
	if desc == "" {
		return title
	}
	return title + "\n" + desc
}
