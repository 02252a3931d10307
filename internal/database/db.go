package database

import (
	"log"

	"depo-backend/internal/config"
	"depo-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Setup(db); err != nil {
		log.Fatalf("Migration hatası: %v", err)
	}

	DB = db
	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Setup: AutoMigrate + bütünlük index'leri + ilk admin kaydı.
// Testler bunu sqlite bağlantısıyla çağırır.
func Setup(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Warehouse{},
		&models.Operator{},
		&models.Item{},
		&models.Rack{},
		&models.Slot{},
		&models.Txn{},
		&models.Stock{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	// Bir kayıt en fazla bir kez ters çevrilebilir. Ön kontrol yarışa açık
	// olduğu için garanti bu partial unique index ile veriliyor
	// (Postgres ve SQLite ikisi de destekler).
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_txns_ref_reversal ON txns(ref_txn_id) WHERE type = 'REVERSAL'",
	).Error; err != nil {
		return err
	}

	return seedAdminOperator(db)
}

// İlk kurulumda varsayılan admin operatörü oluştur. Parola ilk girişte
// değiştirilmek zorunda.
func seedAdminOperator(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Operator{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.Operator{
		Username:      "admin",
		DisplayName:   "Yönetici",
		Role:          models.RoleAdmin,
		Status:        models.StatusActive,
		PasswordHash:  string(hash),
		MustChangePwd: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Println("Varsayılan admin operatörü oluşturuldu (kullanıcı: admin)")
	return nil
}
