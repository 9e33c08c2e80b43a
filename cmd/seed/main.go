package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stampcard-next/internal/authz"
	"github.com/stampcard-next/internal/cache"
	"github.com/stampcard-next/internal/config"
	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"
	"github.com/stampcard-next/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoBusinessName = "Demo Corner Cafe"

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	business := models.Business{Name: demoBusinessName, Timezone: "Asia/Shanghai", IsActive: true}
	if err := firstOrCreate(&business, "name = ?", business.Name); err != nil {
		stdLog.Fatalf("Failed to seed business: %v", err)
	}
	stdLog.Printf("Business: %s (id=%d)", business.Name, business.ID)

	// 周一至周六 08:00-22:00，周五周六营业至次日 01:00，周日休息
	for weekday := 0; weekday < 7; weekday++ {
		hours := models.BusinessHours{BusinessID: business.ID, Weekday: weekday, OpenMinute: 8 * 60, CloseMinute: 22 * 60}
		switch time.Weekday(weekday) {
		case time.Sunday:
			hours.IsClosed = true
		case time.Friday, time.Saturday:
			hours.CloseMinute = 60
		}
		if err := firstOrCreate(&hours, "business_id = ? AND weekday = ?", business.ID, weekday); err != nil {
			stdLog.Fatalf("Failed to seed hours for weekday %d: %v", weekday, err)
		}
	}

	program := models.LoyaltyProgram{
		BusinessID:             business.ID,
		Name:                   "Coffee Club",
		RewardDescription:      "Any handcrafted drink on the house",
		RewardValue:            models.NewMoneyFromDecimal(decimal.NewFromFloat(5.5)),
		Currency:               constants.CurrencyDefault,
		StampsRequired:         8,
		MinScanIntervalMinutes: 30,
		MaxScansPerDay:         3,
		RequireOpenHours:       true,
		AutoVerify:             true,
		RedemptionMode:         constants.RedemptionModeBoth,
		QRExpirySeconds:        300,
		PINExpirySeconds:       600,
		MaxFailedAttempts:      5,
		LockoutDurationMinutes: 15,
		IsActive:               true,
	}
	if err := firstOrCreate(&program, "business_id = ? AND name = ?", business.ID, program.Name); err != nil {
		stdLog.Fatalf("Failed to seed program: %v", err)
	}
	stdLog.Printf("Program: %s (id=%d, stamps_required=%d)", program.Name, program.ID, program.StampsRequired)

	// 营业时间或计划变更后清除 Redis 中的配置快照
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		stdLog.Printf("Redis unavailable, cached loyalty config not invalidated: %v", err)
	} else {
		configSvc := service.NewLoyaltyConfigService(
			repository.NewBusinessRepository(models.DB),
			repository.NewLoyaltyProgramRepository(models.DB),
			time.Duration(cfg.Loyalty.ConfigCacheSeconds)*time.Second,
		)
		configSvc.Invalidate(context.Background(), business.ID)
		_ = cache.Close()
	}

	customer := models.User{Email: "customer@example.com", DisplayName: "Demo Customer", Status: constants.UserStatusActive}
	if err := firstOrCreate(&customer, "email = ?", customer.Email); err != nil {
		stdLog.Fatalf("Failed to seed customer: %v", err)
	}

	staffMembers := []models.Staff{
		{BusinessID: business.ID, Username: "demo-owner", DisplayName: "Demo Owner", Role: constants.StaffRoleOwner, Status: constants.StaffStatusActive},
		{BusinessID: business.ID, Username: "demo-cashier", DisplayName: "Demo Cashier", Role: constants.StaffRoleCashier, Status: constants.StaffStatusActive},
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	tokens := service.NewTokenService(cfg.UserJWT, cfg.StaffJWT)
	now := time.Now()
	if token, expiresAt, err := tokens.GenerateUserJWT(&customer, now); err != nil {
		stdLog.Printf("Failed to sign customer token: %v", err)
	} else {
		fmt.Printf("customer %s (id=%d) token, expires %s:\n%s\n\n", customer.Email, customer.ID, expiresAt.Format(time.RFC3339), token)
	}

	for i := range staffMembers {
		staff := &staffMembers[i]
		if err := firstOrCreate(staff, "username = ?", staff.Username); err != nil {
			stdLog.Fatalf("Failed to seed staff %s: %v", staff.Username, err)
		}
		if err := authzService.SetStaffRoles(staff.ID, []string{staff.Role}); err != nil {
			stdLog.Printf("Failed to grant role %s to %s: %v", staff.Role, staff.Username, err)
		}
		token, expiresAt, err := tokens.GenerateStaffJWT(staff, now)
		if err != nil {
			stdLog.Printf("Failed to sign staff token for %s: %v", staff.Username, err)
			continue
		}
		fmt.Printf("staff %s [%s] (id=%d) token, expires %s:\n%s\n\n", staff.Username, staff.Role, staff.ID, expiresAt.Format(time.RFC3339), token)
	}

	stdLog.Printf("Seed completed")
}

// firstOrCreate 按条件查找已有记录，不存在时创建
func firstOrCreate(dest interface{}, query string, args ...interface{}) error {
	err := models.DB.Where(query, args...).First(dest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return models.DB.Create(dest).Error
}
