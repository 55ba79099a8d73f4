package service

import (
	"context"
	"fmt"
	"sync"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"github.com/charmbracelet/log"
)

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type CategoryPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Icon  *string `json:"icon"`
}

// CategoryService provides helpers around categories.
type CategoryService struct {
	mu     sync.Mutex
	store  domain.Store
	tasks  *TaskService
	logger *log.Logger
}

func NewCategoryService(store domain.Store, tasks *TaskService, logger *log.Logger) *CategoryService {
	return &CategoryService{
		store:  store,
		tasks:  tasks,
		logger: logger.WithPrefix("categories"),
	}
}

func (s *CategoryService) All(ctx context.Context) ([]*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ListCategories(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id int) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := &domain.Category{
		Name:  input.Name,
		Color: input.Color,
		Icon:  input.Icon,
	}
	if cat.Color == "" {
		cat.Color = domain.DefaultCategoryColor
	}
	if cat.Icon == "" {
		cat.Icon = domain.DefaultCategoryIcon
	}
	created, err := s.store.AddCategory(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.logger.Debug("category created", "id", created.ID, "name", created.Name)
	return created, nil
}

// Import stores a category keeping its id when set (used for seeding).
func (s *CategoryService) Import(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddCategory(ctx, cat)
}

func (s *CategoryService) Update(ctx context.Context, id int, patch CategoryPatch) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		cat.Name = *patch.Name
	}
	if patch.Color != nil {
		cat.Color = *patch.Color
	}
	if patch.Icon != nil {
		cat.Icon = *patch.Icon
	}
	return s.store.SaveCategory(ctx, cat)
}

// Delete detaches the tasks that referenced the category, then removes it.
func (s *CategoryService) Delete(ctx context.Context, id int) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	var removed *domain.Category
	cleared, err := s.tasks.DetachCategory(ctx, id, func() error {
		var err error
		removed, err = s.store.DeleteCategory(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("category deleted", "id", id, "detached_tasks", cleared)
	return removed, nil
}

// Names maps category ids to display names.
func (s *CategoryService) Names(ctx context.Context) (map[int]string, error) {
	cats, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}
