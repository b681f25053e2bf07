package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "homepulse/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_HUMIDITY     = "humidity"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_MOTION       = "motion"
	DEVICE_CLASS_RUNNING      = "running"
	DEVICE_CLASS_LIGHT        = "light"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func BridgeDevice(baseTopic string) HADevice {
	return HADevice{
		Id:           fmt.Sprintf("homepulse_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "HomePulse",
		Model:        "HomePulse Bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("HomePulse %s", md5HashShort(baseTopic)),
	}
}

func DeviceToHADevice(device *Device, via HADevice) HADevice {
	return HADevice{
		Id:           fmt.Sprintf("hp_%s_%s", device.Type, md5HashShort(device.ID)),
		Manufacturer: "HomePulse",
		Model:        string(device.Type),
		Name:         device.Name,
		ViaDevice:    via.Id,
	}
}

func IdDevice(device HADevice) HADevice {
	return HADevice{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice HADevice) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// DeviceSensors builds the discovery sensor set for one device. Every type
// gets power and efficiency score sensors; telemetry sensors depend on the
// type.
func DeviceSensors(haDevice HADevice, device *Device) []GenericSensor {

	var sensors []GenericSensor

	switch device.Type {
	case DeviceTypeThermostat:
		sensors = append(sensors, GenericSensor{
			Device:            haDevice,
			Id:                SensorId(device.ID, SENSOR_SUFFIX_TEMPERATURE),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Target temperature",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_TEMPERATURE,
			UnitOfMeasurement: "°C",
			UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_TEMPERATURE),
		})
		sensors = append(sensors, GenericSensor{
			Device:            haDevice,
			Id:                SensorId(device.ID, SENSOR_SUFFIX_HUMIDITY),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Humidity",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_HUMIDITY,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_HUMIDITY),
		})
	case DeviceTypeLight:
		sensors = append(sensors, GenericSensor{
			Device:            haDevice,
			Id:                SensorId(device.ID, SENSOR_SUFFIX_BRIGHTNESS),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Brightness",
			StateClass:        STATE_CLASS_MEASUREMENT,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_BRIGHTNESS),
		})
		sensors = append(sensors, GenericSensor{
			Device:      haDevice,
			Id:          device.ID,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Light on",
			DeviceClass: DEVICE_CLASS_LIGHT,
			UniqueId:    uniqueId(haDevice.Id, "on"),
		})
	case DeviceTypeCamera:
		sensors = append(sensors, GenericSensor{
			Device:      haDevice,
			Id:          SensorId(device.ID, SENSOR_SUFFIX_MOTION),
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Motion",
			DeviceClass: DEVICE_CLASS_MOTION,
			UniqueId:    uniqueId(haDevice.Id, SENSOR_SUFFIX_MOTION),
		})
		sensors = append(sensors, GenericSensor{
			Device:      haDevice,
			Id:          SensorId(device.ID, SENSOR_SUFFIX_RECORDING),
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Recording",
			DeviceClass: DEVICE_CLASS_RUNNING,
			UniqueId:    uniqueId(haDevice.Id, SENSOR_SUFFIX_RECORDING),
		})
	}

	sensors = append(sensors, GenericSensor{
		Device:            haDevice,
		Id:                SensorId(device.ID, SENSOR_SUFFIX_POWER),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:            haDevice,
		Id:                SensorId(device.ID, SENSOR_SUFFIX_EFFICIENCY),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Efficiency score",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_EFFICIENCY),
	})

	return sensors
}

// DeviceSwitches exposes the device power override as a switch.
func DeviceSwitches(haDevice HADevice, device *Device) []GenericSwitch {

	var switches []GenericSwitch

	switches = append(switches, GenericSwitch{
		Device:   haDevice,
		Id:       device.ID,
		Name:     fmt.Sprintf("%s power", device.Name),
		UniqueId: uniqueId(haDevice.Id, "power_switch"),
		Icon:     "mdi:power",
	})

	return switches
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
