package sql

import (
	"testing"

	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql/vector"
)

var benchDialects = []string{dialect.SQLite, dialect.MySQL, dialect.Postgres}

func BenchmarkInsert_Small(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Dialect(d).Insert("users",
					Set("id", 1), Set("age", 30), Set("first_name", "Ariel"), Set("last_name", "Mashraki"),
					Set("nickname", "a8m"), Set("spouse_id", 2), Set("created_at", "2009-11-10 23:00:00"),
				).ToSQL()
			}
		})
	}
}

func BenchmarkSelect_Simple(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Dialect(d).Select("id", "name", "email").From("users").ToSQL()
			}
		})
	}
}

func BenchmarkSelect_WithJoins(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Dialect(d).Select("u.id", "u.name", "p.title").
					From("users u").
					Join("posts p", "p.user_id = u.id").
					Where("u.active", "=", true).
					OrderBy("u.created_at").
					Limit(10).
					ToSQL()
			}
		})
	}
}

func BenchmarkSelect_Complex(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Dialect(d).Select().
					From("users").
					Where("status", "=", "active").
					WhereIn("role", "admin", "owner", "editor").
					OrWhere("age", ">", 18).
					WhereCond(ContainsFold("name", "an")).
					GroupBy("role").
					Having("COUNT(*) > ?", 1).
					OrderBy("created_at", OrderDesc).
					Limit(20).
					Offset(40).
					ToSQL()
			}
		})
	}
}

func BenchmarkSelect_Subquery(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				sub := Dialect(d).Select("user_id").From("sessions").Where("active", "=", true)
				_, _ = Dialect(d).Select().From("users").Where("age", ">", 18).WhereInQuery("id", sub).ToSQL()
			}
		})
	}
}

func BenchmarkUpdate(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Dialect(d).Update("users", Set("name", "a8m"), Set("age", 31)).Where("id", "=", 1).ToSQL()
			}
		})
	}
}

func BenchmarkVector_KNN(b *testing.B) {
	reg := vector.NewRegistry(vector.WithBuiltins(), vector.WithActive(vector.NamePGVector))
	reg.Freeze()
	v := make([]float32, 384)
	for i := range v {
		v[i] = float32(i) / 384
	}
	d := Dialect(dialect.Postgres, WithVectorRegistry(reg))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Select("id").From("documents").KNNSearch("embedding", v, 10, WithScore("score")).ToSQL()
	}
}

func BenchmarkVector_Hybrid(b *testing.B) {
	reg := vector.NewRegistry(vector.WithBuiltins(), vector.WithActive(vector.NamePGVector))
	reg.Freeze()
	v := []float32{0.1, 0.2, 0.3}
	d := Dialect(dialect.Postgres, WithVectorRegistry(reg))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Select("id").From("docs").
			KNNSearch("embedding", v, 10).
			TextSearch([]string{"body"}, "go").
			HybridRanking(Weights{SignalVector: 0.6, SignalText: 0.3, SignalRecency: 0.1}).
			ToSQL()
	}
}
