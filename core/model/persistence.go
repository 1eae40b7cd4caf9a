package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// Register はインターフェース型のフィールドに格納される具象型をgobに登録する
// 各推定器パッケージの init から呼び出す
func Register(value interface{}) {
	gob.Register(value)
}

// SaveModel はモデルをファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、書き込み途中のファイルが
// 読み込まれることはない。親ディレクトリは必要に応じて作成される。
//
// 使用例:
//
//	err := model.SaveModel(search, "trained_models/iris/RandomForestClassifier.gob")
func SaveModel(model interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", filename)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合は errors.ErrNotFound をラップしたエラーを返す。
//
// 使用例:
//
//	var search model_selection.GridSearchCV
//	err := model.LoadModel(&search, path)
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrNotFound, "model file %s", filename)
		}
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
