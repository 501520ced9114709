package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"crm-service/internal/model"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// fixtures is the seed file layout. Expiry and due dates are given as day
// offsets from the time of seeding so a seeded database always has
// something inside the scan window.
type fixtures struct {
	Clients  []clientFixture  `yaml:"clients"`
	Articles []articleFixture `yaml:"articles"`
}

type clientFixture struct {
	Name             string           `yaml:"name"`
	Email            string           `yaml:"email"`
	Company          string           `yaml:"company"`
	Phone            string           `yaml:"phone"`
	DomainName       string           `yaml:"domain_name"`
	DomainProvider   string           `yaml:"domain_provider"`
	DomainExpiresIn  *int             `yaml:"domain_expires_in_days"`
	HostingProvider  string           `yaml:"hosting_provider"`
	HostingExpiresIn *int             `yaml:"hosting_expires_in_days"`
	Projects         []projectFixture `yaml:"projects"`
}

type projectFixture struct {
	Name       string        `yaml:"name"`
	Status     string        `yaml:"status"`
	Budget     float64       `yaml:"budget"`
	AmountPaid float64       `yaml:"amount_paid"`
	Tasks      []taskFixture `yaml:"tasks"`
}

type taskFixture struct {
	Title     string `yaml:"title"`
	Status    string `yaml:"status"`
	Priority  string `yaml:"priority"`
	DueInDays *int   `yaml:"due_in_days"`
}

type articleFixture struct {
	Title     string   `yaml:"title"`
	Slug      string   `yaml:"slug"`
	Category  string   `yaml:"category"`
	Content   string   `yaml:"content"`
	Tags      []string `yaml:"tags"`
	Published bool     `yaml:"published"`
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo data from a YAML fixture file",
	Long: `Load clients, projects, tasks and knowledge base articles from a YAML
fixture file. Clients whose email already exists are skipped.

Examples:
  crm seed --file deploy/seed.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()

		f, err := loadFixtures(seedFile)
		if err != nil {
			return err
		}

		db, err := openDB(appConfig, log)
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := applyFixtures(cmd.Context(), db, f, time.Now(), log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d clients, %d articles\n", n, len(f.Articles))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seed.yaml", "Fixture file")
}

func loadFixtures(path string) (*fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var f fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &f, nil
}

func offset(now time.Time, days *int) *time.Time {
	if days == nil {
		return nil
	}
	t := now.AddDate(0, 0, *days)
	return &t
}

// applyFixtures inserts f in one transaction and returns the number of
// clients created.
func applyFixtures(ctx context.Context, db *gorm.DB, f *fixtures, now time.Time, log *zap.Logger) (int, error) {
	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cf := range f.Clients {
			email := strings.ToLower(cf.Email)

			var existing int64
			if err := tx.Model(&model.Client{}).Where("email = ?", email).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				log.Info("Client already seeded", zap.String("email", email))
				continue
			}

			client := model.Client{
				Name:              cf.Name,
				Email:             email,
				Company:           cf.Company,
				Phone:             cf.Phone,
				Status:            model.ClientStatusActive,
				DomainName:        cf.DomainName,
				DomainProvider:    cf.DomainProvider,
				DomainExpiryDate:  offset(now, cf.DomainExpiresIn),
				HostingProvider:   cf.HostingProvider,
				HostingExpiryDate: offset(now, cf.HostingExpiresIn),
			}
			if err := tx.Create(&client).Error; err != nil {
				return fmt.Errorf("seeding client %s: %w", email, err)
			}
			created++

			for _, pf := range cf.Projects {
				status := pf.Status
				if status == "" {
					status = model.ProjectStatusPlanning
				}
				project := model.Project{
					ClientID:   client.ID,
					Name:       pf.Name,
					Status:     status,
					Budget:     pf.Budget,
					AmountPaid: pf.AmountPaid,
				}
				if err := tx.Create(&project).Error; err != nil {
					return fmt.Errorf("seeding project %s: %w", pf.Name, err)
				}

				for _, tf := range pf.Tasks {
					task := model.Task{
						ProjectID: project.ID,
						Title:     tf.Title,
						Status:    tf.Status,
						Priority:  tf.Priority,
						DueDate:   offset(now, tf.DueInDays),
					}
					if task.Status == "" {
						task.Status = model.TaskStatusTodo
					}
					if task.Priority == "" {
						task.Priority = model.PriorityMedium
					}
					if err := tx.Create(&task).Error; err != nil {
						return fmt.Errorf("seeding task %s: %w", tf.Title, err)
					}
				}
			}
		}

		for _, af := range f.Articles {
			var existing int64
			if err := tx.Model(&model.KBArticle{}).Where("slug = ?", af.Slug).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}
			article := model.KBArticle{
				Title:     af.Title,
				Slug:      af.Slug,
				Category:  af.Category,
				Content:   af.Content,
				Tags:      af.Tags,
				Published: af.Published,
			}
			if err := tx.Create(&article).Error; err != nil {
				return fmt.Errorf("seeding article %s: %w", af.Slug, err)
			}
		}
		return nil
	})
	return created, err
}
