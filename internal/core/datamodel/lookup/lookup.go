package lookup

type Categorie struct {
	ID  int64  `gorm:"primaryKey"`
	Nom string `gorm:"column:nom;size:50;uniqueIndex;not null"`
}

func (Categorie) TableName() string { return "categories" }

type Statut struct {
	ID  int64  `gorm:"primaryKey"`
	Nom string `gorm:"column:nom;size:50;uniqueIndex;not null"`
}

func (Statut) TableName() string { return "statuts" }

type Type struct {
	ID  int64  `gorm:"primaryKey"`
	Nom string `gorm:"column:nom;size:50;uniqueIndex;not null"`
}

func (Type) TableName() string { return "types" }
