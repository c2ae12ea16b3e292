package migrations

func init() {
	Migrations.MustRegister(
		execFile("2024112201_create_quizzes.up.sql"),
		execFile("2024112201_create_quizzes.down.sql"),
	)
}
