package mapping

import (
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hatlonely/sorm/codec"
	"github.com/hatlonely/sorm/schema"
	"github.com/hatlonely/sorm/uid"
)

type Person struct {
	ID   int64  `orm:"id,primary,autoinc"`
	Name string `orm:"name"`
	Note string
}

type Address struct {
	City string `json:"city" msgpack:"city"`
	Zip  int    `json:"zip" msgpack:"zip"`
}

type Profile struct {
	Code     string                  `orm:"code,pk,gen=uuid"`
	Owner    *Person                 `orm:"owner"`
	Nickname *string                 `orm:"nickname"`
	Active   bool                    `orm:"active"`
	Score    float64                 `orm:"score"`
	Level    uint8                   `orm:"level"`
	Avatar   []byte                  `orm:"avatar"`
	Birthday time.Time               `orm:"birthday"`
	Home     Address                 `orm:"home,codec=json"`
	Work     *Address                `orm:"work,codec=msgpack"`
	Tags     []string                `orm:"tags,codec=json"`
	Motto    *wrapperspb.StringValue `orm:"motto,codec=proto"`
	Friends  []*Person               `orm:"friends,many"`
	VetID    int64                   `orm:"vet_id,fk=Vet.id"`
	Secret   string                  `orm:"-"`
	unmapped int
}

func (Profile) TableName() string {
	return "profiles"
}

func (Profile) UniqueSets() [][]string {
	return [][]string{{"owner", "nickname"}}
}

// 互相引用
type Husband struct {
	ID   int64 `orm:"id,pk"`
	Wife *Wife `orm:"wife"`
}

type Wife struct {
	ID      int64    `orm:"id,pk"`
	Husband *Husband `orm:"husband"`
}

func TestParseTag(t *testing.T) {
	Convey("测试 tag 解析", t, func() {
		sf := reflect.StructField{Name: "UserName"}

		Convey("默认列名为字段名", func() {
			opts, err := parseTag(sf, "")
			So(err, ShouldBeNil)
			So(opts.name, ShouldEqual, "UserName")

			opts, err = parseTag(sf, ",unique")
			So(err, ShouldBeNil)
			So(opts.name, ShouldEqual, "UserName")
			So(opts.unique, ShouldBeTrue)
		})

		Convey("全部选项", func() {
			opts, err := parseTag(sf, "user_name, type=text, primary, autoinc, unique, fk=User.id, codec=json, gen=uuid7, many")
			So(err, ShouldBeNil)
			So(opts.name, ShouldEqual, "user_name")
			So(opts.sqlType, ShouldEqual, schema.SQLTypeText)
			So(opts.primaryKey, ShouldBeTrue)
			So(opts.autoIncrement, ShouldBeTrue)
			So(opts.unique, ShouldBeTrue)
			So(opts.foreignKey, ShouldResemble, &schema.ForeignKey{Table: "User", Column: "id"})
			So(opts.codec, ShouldEqual, "json")
			So(opts.generator, ShouldEqual, "uuid7")
			So(opts.many, ShouldBeTrue)
		})

		Convey("pk 是 primary 的别名", func() {
			opts, err := parseTag(sf, "id,pk")
			So(err, ShouldBeNil)
			So(opts.primaryKey, ShouldBeTrue)
		})

		Convey("第一段是选项时保留默认列名", func() {
			opts, err := parseTag(sf, "type=BLOB")
			So(err, ShouldBeNil)
			So(opts.name, ShouldEqual, "UserName")
			So(opts.sqlType, ShouldEqual, schema.SQLTypeBlob)
		})

		Convey("非法选项", func() {
			for _, tag := range []string{"a,nullable", "a,size=10", "a,type=VARCHAR", "a,fk=User", "a,fk=.id"} {
				_, err := parseTag(sf, tag)
				So(errors.Is(err, ErrInvalidTag), ShouldBeTrue)
			}
		})

		Convey("未知列类型保留类型名", func() {
			_, err := parseTag(sf, "a,type=VARCHAR")
			So(errors.Is(err, ErrInvalidTag), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `unknown sql type: "VARCHAR"`)
		})
	})
}

func TestRegister(t *testing.T) {
	Convey("测试实体注册", t, func() {
		r := NewRegistry()

		Convey("Person", func() {
			e, err := r.Register(Person{})
			So(err, ShouldBeNil)
			So(e.Table(), ShouldEqual, "Person")
			So(e.Type(), ShouldEqual, reflect.TypeOf(Person{}))
			So(len(e.Fields()), ShouldEqual, 2)

			pk, err := e.PrimaryKey()
			So(err, ShouldBeNil)
			So(pk.Name(), ShouldEqual, "ID")
			So(pk.ColumnName(), ShouldEqual, "id")

			stmt, err := e.TableDefinition().CreateStatement()
			So(err, ShouldBeNil)
			So(stmt, ShouldEqual, "CREATE TABLE IF NOT EXISTS Person (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)")

			Convey("重复注册返回同一个实体", func() {
				again, err := r.Register(&Person{})
				So(err, ShouldBeNil)
				So(again, ShouldPointTo, e)
				So(len(r.Entities()), ShouldEqual, 1)
			})
		})

		Convey("Profile 覆盖全部字段种类", func() {
			e, err := r.Register((*Profile)(nil))
			So(err, ShouldBeNil)
			So(e.Table(), ShouldEqual, "profiles")

			// 引用的 Person 被一并注册
			person, ok := r.Lookup(reflect.TypeOf(&Person{}))
			So(ok, ShouldBeTrue)
			So(r.Entities(), ShouldResemble, []*Entity{e, person})
			byTable, ok := r.LookupTable("Person")
			So(ok, ShouldBeTrue)
			So(byTable, ShouldPointTo, person)

			So(len(e.Fields()), ShouldEqual, 14)
			So(len(e.Columns()), ShouldEqual, 13)
			So(len(e.References()), ShouldEqual, 1)
			So(len(e.Collections()), ShouldEqual, 1)

			owner, ok := e.Field("owner")
			So(ok, ShouldBeTrue)
			So(owner.Kind(), ShouldEqual, KindReference)
			So(owner.Target(), ShouldPointTo, person)
			So(owner.Column().Type, ShouldEqual, schema.SQLTypeInteger)
			So(owner.Column().ForeignKey, ShouldResemble, &schema.ForeignKey{Table: "Person", Column: "id"})

			code, _ := e.Field("code")
			So(code.Generator(), ShouldNotBeNil)
			So(code.Generator().Kind(), ShouldEqual, reflect.String)

			motto, _ := e.Field("motto")
			So(motto.Kind(), ShouldEqual, KindEncoded)
			So(motto.Column().Type, ShouldEqual, schema.SQLTypeBlob)

			_, ok = e.Field("friends")
			So(ok, ShouldBeFalse)
			friends := e.Collections()[0]
			So(friends.Target(), ShouldPointTo, person)

			stmt, err := e.TableDefinition().CreateStatement()
			So(err, ShouldBeNil)
			So(stmt, ShouldEqual, "CREATE TABLE IF NOT EXISTS profiles ("+
				"code TEXT PRIMARY KEY, owner INTEGER, nickname TEXT, active INTEGER, score REAL, level INTEGER, "+
				"avatar BLOB, birthday TEXT, home BLOB, work BLOB, tags BLOB, motto BLOB, vet_id INTEGER, "+
				"UNIQUE(owner, nickname), "+
				"FOREIGN KEY(owner) REFERENCES Person(id), "+
				"FOREIGN KEY(vet_id) REFERENCES Vet(id))")

			link, err := e.LinkTable(friends)
			So(err, ShouldBeNil)
			stmt, err = link.CreateStatement()
			So(err, ShouldBeNil)
			So(stmt, ShouldEqual, "CREATE TABLE IF NOT EXISTS profiles_friends ("+
				"link_id TEXT, child_id INTEGER, UNIQUE(link_id, child_id), "+
				"FOREIGN KEY(link_id) REFERENCES profiles(code), "+
				"FOREIGN KEY(child_id) REFERENCES Person(id))")

			_, err = e.LinkTable(owner)
			So(err, ShouldNotBeNil)
		})

		Convey("互相引用的类型", func() {
			h, err := r.Register(Husband{})
			So(err, ShouldBeNil)
			w, ok := r.Lookup(reflect.TypeOf(Wife{}))
			So(ok, ShouldBeTrue)
			So(h.References()[0].Target(), ShouldPointTo, w)
			So(w.References()[0].Target(), ShouldPointTo, h)
		})

		Convey("TableDefinition 返回副本", func() {
			e, _ := r.Register(Profile{})
			table := e.TableDefinition()
			table.Columns[1].ForeignKey.Table = "Changed"
			owner, _ := e.Field("owner")
			So(owner.Column().ForeignKey.Table, ShouldEqual, "Person")
		})
	})
}

type noPK struct {
	Name string `orm:"name"`
}

type refNoPK struct {
	ID    int64 `orm:"id,pk"`
	Other *noPK `orm:"other"`
}

type twoPK struct {
	A int64 `orm:"a,pk"`
	B int64 `orm:"b,pk"`
}

type badType struct {
	C chan int `orm:"c"`
}

type badAutoinc struct {
	ID string `orm:"id,pk,autoinc"`
}

type badCodec struct {
	V map[string]int `orm:"v,codec=gob"`
}

type badProto struct {
	V string `orm:"v,codec=proto"`
}

type badGen struct {
	ID int64 `orm:"id,pk,gen=uuid"`
}

type unknownGen struct {
	ID int64 `orm:"id,pk,gen=sequence"`
}

type badMany struct {
	ID    int64  `orm:"id,pk"`
	Items []noPK `orm:"items,many"`
}

type collectionNoOwnerPK struct {
	Name  string    `orm:"name"`
	Items []*Person `orm:"items,many"`
}

type duplicateColumn struct {
	A string `orm:"x"`
	B string `orm:"x"`
}

type unexportedTag struct {
	a string `orm:"a"`
}

type sameTable struct {
	ID int64 `orm:"id,pk"`
}

func (sameTable) TableName() string { return "Person" }

func TestRegisterErrors(t *testing.T) {
	Convey("测试注册错误", t, func() {
		r := NewRegistry()

		Convey("非结构体", func() {
			_, err := r.Register(42)
			So(errors.Is(err, ErrNotStruct), ShouldBeTrue)
			_, err = r.Register(nil)
			So(errors.Is(err, ErrNotStruct), ShouldBeTrue)
		})

		Convey("引用目标没有主键", func() {
			_, err := r.Register(refNoPK{})
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)
			// 失败的注册不留下任何实体
			So(r.Entities(), ShouldBeEmpty)
		})

		Convey("多个主键", func() {
			_, err := r.Register(twoPK{})
			So(errors.Is(err, ErrMultiplePrimaryKeys), ShouldBeTrue)
		})

		Convey("不支持的类型", func() {
			_, err := r.Register(badType{})
			So(errors.Is(err, ErrUnsupportedType), ShouldBeTrue)
			_, err = r.Register(badProto{})
			So(errors.Is(err, ErrUnsupportedType), ShouldBeTrue)
			_, err = r.Register(badGen{})
			So(errors.Is(err, ErrUnsupportedType), ShouldBeTrue)
			_, err = r.Register(badMany{})
			So(errors.Is(err, ErrUnsupportedType), ShouldBeTrue)
		})

		Convey("非法 tag", func() {
			_, err := r.Register(badAutoinc{})
			So(errors.Is(err, ErrInvalidTag), ShouldBeTrue)
			_, err = r.Register(unexportedTag{})
			So(errors.Is(err, ErrInvalidTag), ShouldBeTrue)
		})

		Convey("未知编解码器和生成器", func() {
			_, err := r.Register(badCodec{})
			So(errors.Is(err, codec.ErrUnknownCodec), ShouldBeTrue)
			_, err = r.Register(unknownGen{})
			So(errors.Is(err, uid.ErrUnknownGenerator), ShouldBeTrue)
		})

		Convey("集合所有者没有主键", func() {
			_, err := r.Register(collectionNoOwnerPK{})
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)
			// Person 注册失败后被一起撤销
			_, ok := r.Lookup(reflect.TypeOf(Person{}))
			So(ok, ShouldBeFalse)
		})

		Convey("重复列名", func() {
			_, err := r.Register(duplicateColumn{})
			So(errors.Is(err, schema.ErrInvalidTable), ShouldBeTrue)
		})

		Convey("重复表名", func() {
			_, err := r.Register(Person{})
			So(err, ShouldBeNil)
			_, err = r.Register(sameTable{})
			So(errors.Is(err, ErrDuplicateTable), ShouldBeTrue)
		})

		Convey("没有主键的实体可以注册", func() {
			e, err := r.Register(noPK{})
			So(err, ShouldBeNil)
			_, err = e.PrimaryKey()
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)
		})
	})
}

func TestFieldConversion(t *testing.T) {
	Convey("测试字段值转换", t, func() {
		r := NewRegistry()
		e, err := r.Register(Profile{})
		So(err, ShouldBeNil)

		field := func(column string) *Field {
			f, ok := e.Field(column)
			So(ok, ShouldBeTrue)
			return f
		}

		nickname := "ali"
		birthday := time.Date(1990, 5, 17, 8, 30, 0, 123, time.UTC)
		p := Profile{
			Code:     "p1",
			Nickname: &nickname,
			Active:   true,
			Score:    9.5,
			Level:    3,
			Avatar:   []byte{1, 2, 3},
			Birthday: birthday,
			Home:     Address{City: "Hangzhou", Zip: 310000},
			Work:     &Address{City: "Shanghai", Zip: 200000},
			Tags:     []string{"a", "b"},
			Motto:    wrapperspb.String("stay hungry"),
		}
		v := reflect.ValueOf(&p).Elem()

		Convey("Value", func() {
			val, err := field("code").Value(v)
			So(err, ShouldBeNil)
			So(val, ShouldEqual, "p1")

			val, _ = field("nickname").Value(v)
			So(val, ShouldEqual, "ali")

			val, _ = field("active").Value(v)
			So(val, ShouldEqual, int64(1))

			val, _ = field("level").Value(v)
			So(val, ShouldEqual, int64(3))

			val, _ = field("score").Value(v)
			So(val, ShouldEqual, 9.5)

			val, _ = field("avatar").Value(v)
			So(val, ShouldResemble, []byte{1, 2, 3})

			val, _ = field("birthday").Value(v)
			So(val, ShouldEqual, "1990-05-17T08:30:00.000000123Z")

			val, _ = field("home").Value(v)
			So(string(val.([]byte)), ShouldEqual, `{"city":"Hangzhou","zip":310000}`)

			_, err = field("owner").Value(v)
			So(err, ShouldNotBeNil)

			p.Nickname = nil
			p.Work = nil
			val, _ = field("nickname").Value(v)
			So(val, ShouldBeNil)
			val, _ = field("work").Value(v)
			So(val, ShouldBeNil)
		})

		Convey("Value 和 Set 往返", func() {
			var out Profile
			ov := reflect.ValueOf(&out).Elem()
			for _, f := range e.Columns() {
				if f.Kind() == KindReference {
					continue
				}
				val, err := f.Value(v)
				So(err, ShouldBeNil)
				So(f.Set(ov, val), ShouldBeNil)
			}

			So(out.Code, ShouldEqual, "p1")
			So(*out.Nickname, ShouldEqual, "ali")
			So(out.Active, ShouldBeTrue)
			So(out.Score, ShouldEqual, 9.5)
			So(out.Level, ShouldEqual, uint8(3))
			So(out.Avatar, ShouldResemble, []byte{1, 2, 3})
			So(out.Birthday.Equal(birthday), ShouldBeTrue)
			So(out.Home, ShouldResemble, p.Home)
			So(out.Work, ShouldResemble, p.Work)
			So(out.Tags, ShouldResemble, p.Tags)
			So(out.Motto.GetValue(), ShouldEqual, "stay hungry")
		})

		Convey("Set 处理 NULL 和类型转换", func() {
			So(field("nickname").Set(v, nil), ShouldBeNil)
			So(p.Nickname, ShouldBeNil)

			So(field("active").Set(v, int64(0)), ShouldBeNil)
			So(p.Active, ShouldBeFalse)

			So(field("code").Set(v, []byte("p2")), ShouldBeNil)
			So(p.Code, ShouldEqual, "p2")

			So(field("score").Set(v, int64(7)), ShouldBeNil)
			So(p.Score, ShouldEqual, 7.0)

			So(field("level").Set(v, int64(300)), ShouldNotBeNil)
			So(field("level").Set(v, int64(-1)), ShouldNotBeNil)
			So(field("birthday").Set(v, "yesterday"), ShouldNotBeNil)
			So(field("score").Set(v, "high"), ShouldNotBeNil)
			So(field("home").Set(v, int64(1)), ShouldNotBeNil)
			So(field("home").Set(v, []byte("{")), ShouldNotBeNil)
		})

		Convey("IsZero", func() {
			So(field("code").IsZero(v), ShouldBeFalse)
			So(field("vet_id").IsZero(v), ShouldBeTrue)
		})
	})
}

func TestSQLValue(t *testing.T) {
	Convey("测试查询参数转换", t, func() {
		s := "x"
		var nilString *string
		So(SQLValue(nil), ShouldBeNil)
		So(SQLValue(nilString), ShouldBeNil)
		So(SQLValue(&s), ShouldEqual, "x")
		So(SQLValue(true), ShouldEqual, int64(1))
		So(SQLValue(3), ShouldEqual, int64(3))
		So(SQLValue(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)), ShouldEqual, "2020-01-02T03:04:05Z")
		So(SQLValue(Address{City: "a"}), ShouldResemble, Address{City: "a"})
	})
}
