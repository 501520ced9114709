package service

import (
	"context"
	"errors"

	"crm-service/internal/model"

	"gorm.io/gorm"
)

// DeleteClient soft-deletes the client together with everything that
// references it, in one transaction.
func DeleteClient(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Client
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		projectIDs := tx.Model(&model.Project{}).Select("id").Where("client_id = ?", id)
		if err := tx.Where("project_id IN (?)", projectIDs).Delete(&model.Task{}).Error; err != nil {
			return err
		}

		for _, m := range []interface{}{
			&model.Project{},
			&model.Notification{},
			&model.Ticket{},
			&model.Invoice{},
			&model.Payment{},
		} {
			if err := tx.Where("client_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&c).Error
	})
}

// DeleteProject soft-deletes the project and its tasks
func DeleteProject(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
}
