package migrations

func init() {
	Migrations.MustRegister(
		execFile("2026101801_create_attendance_records.up.sql"),
		execFile("2026101801_create_attendance_records.down.sql"),
	)
}
