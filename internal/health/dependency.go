package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	sqlDB, err := c.db.DB()
	if err != nil {
		return unhealthy(res, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unhealthy(res, err)
	}
	return res
}

// SchemaChecker reports unready until the identity tables exist, so a
// replica started before `migrate up` does not take traffic.
type SchemaChecker struct {
	db *gorm.DB
}

func NewSchemaChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &SchemaChecker{db: db}
}

func (c *SchemaChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "schema", Healthy: true}
	migrator := c.db.WithContext(ctx).Migrator()
	var missing []string
	for _, model := range []any{&domain.Credential{}, &domain.EmployeeProfile{}, &domain.OTPChallenge{}, &domain.Session{}} {
		if !migrator.HasTable(model) {
			missing = append(missing, fmt.Sprintf("%T", model))
		}
	}
	if len(missing) > 0 {
		return unhealthy(res, fmt.Errorf("missing tables: %s", strings.Join(missing, ", ")))
	}
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return unhealthy(res, err)
	}
	return res
}

func unhealthy(res CheckResult, err error) CheckResult {
	res.Healthy = false
	res.Error = err.Error()
	return res
}
