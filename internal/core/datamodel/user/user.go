package user

type User struct {
	ID         int64  `gorm:"primaryKey"`
	Nom        string `gorm:"column:nom;size:100;not null"`
	Email      string `gorm:"column:email;size:120;uniqueIndex;not null"`
	MotDePasse string `gorm:"column:mot_de_passe;size:200;not null"`
	Role       string `gorm:"column:role;size:20;not null"`
}

func (User) TableName() string { return "users" }
